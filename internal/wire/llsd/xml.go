package llsd

import (
	"bytes"
	"encoding/xml"
	"fmt"
)

// xmlNode is the generic parse target for an <llsd> document: LLSD-XML
// nests freely, but the capability surface this core talks to only ever
// exchanges flat arrays of strings and flat maps of string to string
// , so DecodeXML/EncodeXML only need to round-trip that shape.
type xmlNode struct {
	XMLName xml.Name
	Content string    `xml:",chardata"`
	Nodes   []xmlNode `xml:",any"`
}

// DecodeXML parses an LLSD-XML document of the form <llsd><map>...</map>
// </llsd> or <llsd><array>...</array></llsd> into a Value. Only string,
// undef, map, and array nodes are recognized; this is sufficient for the seed
// capability request/response exchange.
func DecodeXML(doc []byte) (Value, error) {
	var root xmlNode
	if err := xml.Unmarshal(doc, &root); err != nil {
		return Value{}, fmt.Errorf("llsd: malformed xml document: %w", err)
	}
	if root.XMLName.Local != "llsd" {
		return Value{}, fmt.Errorf("llsd: expected root <llsd>, got <%s>", root.XMLName.Local)
	}
	if len(root.Nodes) != 1 {
		return Value{}, fmt.Errorf("llsd: <llsd> must wrap exactly one value, got %d", len(root.Nodes))
	}
	return decodeXMLNode(root.Nodes[0])
}

func decodeXMLNode(n xmlNode) (Value, error) {
	switch n.XMLName.Local {
	case "string":
		return Value{Kind: KindString, Str: n.Content}, nil
	case "undef":
		return Value{Kind: KindUndef}, nil
	case "array":
		arr := make([]Value, 0, len(n.Nodes))
		for _, child := range n.Nodes {
			v, err := decodeXMLNode(child)
			if err != nil {
				return Value{}, err
			}
			arr = append(arr, v)
		}
		return Value{Kind: KindArray, Array: arr}, nil
	case "map":
		m := make(map[string]Value)
		for i := 0; i+1 < len(n.Nodes); i += 2 {
			keyNode := n.Nodes[i]
			if keyNode.XMLName.Local != "key" {
				return Value{}, fmt.Errorf("llsd: expected <key>, got <%s>", keyNode.XMLName.Local)
			}
			val, err := decodeXMLNode(n.Nodes[i+1])
			if err != nil {
				return Value{}, err
			}
			m[keyNode.Content] = val
		}
		return Value{Kind: KindMap, Map: m}, nil
	default:
		return Value{}, fmt.Errorf("llsd: unsupported xml node <%s>", n.XMLName.Local)
	}
}

// EncodeXML serializes a Value (array or map of strings, recursively) into
// an LLSD-XML document suitable for POSTing to a seed capability URL.
func EncodeXML(v Value) []byte {
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?><llsd>`)
	encodeXMLValue(&buf, v)
	buf.WriteString(`</llsd>`)
	return buf.Bytes()
}

func encodeXMLValue(buf *bytes.Buffer, v Value) {
	switch v.Kind {
	case KindString:
		buf.WriteString("<string>")
		xml.EscapeText(buf, []byte(v.Str))
		buf.WriteString("</string>")
	case KindArray:
		buf.WriteString("<array>")
		for _, item := range v.Array {
			encodeXMLValue(buf, item)
		}
		buf.WriteString("</array>")
	case KindMap:
		buf.WriteString("<map>")
		for k, val := range v.Map {
			buf.WriteString("<key>")
			xml.EscapeText(buf, []byte(k))
			buf.WriteString("</key>")
			encodeXMLValue(buf, val)
		}
		buf.WriteString("</map>")
	default:
		buf.WriteString("<undef/>")
	}
}
