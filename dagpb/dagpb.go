// Package dagpb implements the protobuf wire format for merkledag nodes
// as spoken by the object API:
//
//	message PBLink {
//		optional bytes  Hash  = 1;
//		optional string Name  = 2;
//		optional uint64 Tsize = 3;
//	}
//
//	message PBNode {
//		repeated PBLink Links = 2;
//		optional bytes  Data  = 1;
//	}
//
// Nodes encode with Links before Data, the order the daemon hashes.
// Decoding accepts fields in any order and skips unknown fields.
package dagpb

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers from merkledag.proto.
const (
	nodeData  = 1
	nodeLinks = 2

	linkHash  = 1
	linkName  = 2
	linkTsize = 3
)

// Link is a named, sized pointer to another node. Hash holds the raw
// multihash bytes of the target.
type Link struct {
	Hash  []byte
	Name  string
	Tsize uint64
}

// Node is a merkledag node: opaque data plus an ordered list of links.
type Node struct {
	Links []Link
	Data  []byte
}

// Marshal encodes the node. Link order is preserved verbatim; every link
// encodes all three fields, and an empty Data field is omitted.
func (n *Node) Marshal() []byte {
	buf := make([]byte, 0, n.size())
	for i := range n.Links {
		l := &n.Links[i]
		buf = protowire.AppendTag(buf, nodeLinks, protowire.BytesType)
		buf = protowire.AppendVarint(buf, uint64(l.size()))
		buf = l.append(buf)
	}
	if len(n.Data) > 0 {
		buf = protowire.AppendTag(buf, nodeData, protowire.BytesType)
		buf = protowire.AppendBytes(buf, n.Data)
	}
	return buf
}

func (n *Node) size() int {
	var sz int
	for i := range n.Links {
		l := n.Links[i].size()
		sz += protowire.SizeTag(nodeLinks) + protowire.SizeBytes(l)
	}
	if len(n.Data) > 0 {
		sz += protowire.SizeTag(nodeData) + protowire.SizeBytes(len(n.Data))
	}
	return sz
}

func (l *Link) size() int {
	sz := protowire.SizeTag(linkHash) + protowire.SizeBytes(len(l.Hash))
	sz += protowire.SizeTag(linkName) + protowire.SizeBytes(len(l.Name))
	sz += protowire.SizeTag(linkTsize) + protowire.SizeVarint(l.Tsize)
	return sz
}

func (l *Link) append(buf []byte) []byte {
	buf = protowire.AppendTag(buf, linkHash, protowire.BytesType)
	buf = protowire.AppendBytes(buf, l.Hash)
	buf = protowire.AppendTag(buf, linkName, protowire.BytesType)
	buf = protowire.AppendString(buf, l.Name)
	buf = protowire.AppendTag(buf, linkTsize, protowire.VarintType)
	buf = protowire.AppendVarint(buf, l.Tsize)
	return buf
}

// Unmarshal decodes a node.
func Unmarshal(data []byte) (*Node, error) {
	n := new(Node)
	for len(data) > 0 {
		num, typ, sz := protowire.ConsumeTag(data)
		if sz < 0 {
			return nil, protowire.ParseError(sz)
		}
		data = data[sz:]
		switch {
		case num == nodeLinks && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return nil, protowire.ParseError(m)
			}
			data = data[m:]
			l, err := unmarshalLink(v)
			if err != nil {
				return nil, fmt.Errorf("link %d: %w", len(n.Links), err)
			}
			n.Links = append(n.Links, l)
		case num == nodeData && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return nil, protowire.ParseError(m)
			}
			data = data[m:]
			n.Data = append([]byte(nil), v...)
		default:
			m := protowire.ConsumeFieldValue(num, typ, data)
			if m < 0 {
				return nil, protowire.ParseError(m)
			}
			data = data[m:]
		}
	}
	return n, nil
}

func unmarshalLink(data []byte) (Link, error) {
	var l Link
	for len(data) > 0 {
		num, typ, sz := protowire.ConsumeTag(data)
		if sz < 0 {
			return l, protowire.ParseError(sz)
		}
		data = data[sz:]
		switch {
		case num == linkHash && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return l, protowire.ParseError(m)
			}
			data = data[m:]
			l.Hash = append([]byte(nil), v...)
		case num == linkName && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return l, protowire.ParseError(m)
			}
			data = data[m:]
			l.Name = string(v)
		case num == linkTsize && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return l, protowire.ParseError(m)
			}
			data = data[m:]
			l.Tsize = v
		default:
			m := protowire.ConsumeFieldValue(num, typ, data)
			if m < 0 {
				return l, protowire.ParseError(m)
			}
			data = data[m:]
		}
	}
	return l, nil
}
