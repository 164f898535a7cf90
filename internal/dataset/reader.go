package dataset

import (
	"context"
	"encoding/base64"
	"encoding/xml"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"

	"db-transfer/internal/transfer"
)

// Reader decodes a dataset and replays it into a Sink. It implements
// transfer.Source. Field values are delivered as strings, binary fields
// as []byte and nulls as nil. base64-text fields decode to strings.
type Reader struct {
	dec *xml.Decoder
}

var _ transfer.Source = (*Reader)(nil)

func NewReader(r io.Reader) *Reader {
	return &Reader{dec: xml.NewDecoder(r)}
}

type xmlRecord struct {
	Fields []xmlField `xml:"field"`
}

type xmlField struct {
	Name     string `xml:"name,attr"`
	Null     string `xml:"null,attr"`
	Encoding string `xml:"encoding,attr"`
	Value    string `xml:",chardata"`
}

// Stream reads the whole dataset. Errors returned by the sink are passed
// through unchanged.
func (r *Reader) Stream(ctx context.Context, sink transfer.Sink) error {
	start, err := r.nextStart()
	if err != nil {
		return err
	}
	if start.Name.Local != elemDataset {
		return r.formatErr("root element is <"+start.Name.Local+">, expected <dataset>", nil)
	}
	h, err := r.header(start)
	if err != nil {
		return err
	}
	if err := sink.Begin(ctx, h); err != nil {
		return err
	}

	table := ""
	for {
		tok, err := r.dec.Token()
		if err == io.EOF {
			return r.formatErr("unexpected end of file", nil)
		}
		if err != nil {
			return r.formatErr("invalid xml", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case t.Name.Local == elemTable && table == "":
				table = attr(t, "name")
				if table == "" {
					return r.formatErr("table without a name", nil)
				}
				if err := sink.BeginTable(ctx, table, attr(t, "schemahash")); err != nil {
					return err
				}
			case t.Name.Local == elemRecord && table != "":
				if err := ctx.Err(); err != nil {
					return err
				}
				rec, err := r.record(t)
				if err != nil {
					return err
				}
				if err := sink.Record(ctx, table, rec); err != nil {
					return err
				}
			default:
				return r.formatErr("unexpected <"+t.Name.Local+">", nil)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case elemTable:
				if err := sink.EndTable(ctx, table); err != nil {
					return err
				}
				table = ""
			case elemDataset:
				return sink.End(ctx)
			}
		case xml.CharData:
			if len(strings.TrimSpace(string(t))) > 0 {
				return r.formatErr("unexpected text", nil)
			}
		}
	}
}

func (r *Reader) nextStart() (xml.StartElement, error) {
	for {
		tok, err := r.dec.Token()
		if err == io.EOF {
			return xml.StartElement{}, r.formatErr("empty document", nil)
		}
		if err != nil {
			return xml.StartElement{}, r.formatErr("invalid xml", err)
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start, nil
		}
	}
}

func (r *Reader) header(start xml.StartElement) (transfer.Header, error) {
	h := transfer.Header{
		Version:     attr(start, "version"),
		Description: attr(start, "description"),
	}
	if h.Version == "" {
		return h, r.formatErr("dataset has no version", nil)
	}
	if ts := attr(start, "timestamp"); ts != "" {
		t, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return h, r.formatErr("invalid timestamp", err)
		}
		h.Timestamp = t
	}
	return h, nil
}

func (r *Reader) record(start xml.StartElement) (transfer.Record, error) {
	var x xmlRecord
	if err := r.dec.DecodeElement(&x, &start); err != nil {
		return nil, r.formatErr("invalid record", err)
	}
	rec := make(transfer.Record, len(x.Fields))
	for _, f := range x.Fields {
		if f.Name == "" {
			return nil, r.formatErr("field without a name", nil)
		}
		if _, dup := rec[f.Name]; dup {
			return nil, r.formatErr("duplicate field "+f.Name, nil)
		}
		switch {
		case f.Null == "true":
			rec[f.Name] = nil
		case f.Encoding == encodingBase64 || f.Encoding == encodingBase64Text:
			b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(f.Value))
			if err != nil {
				return nil, r.formatErr("field "+f.Name, errors.Wrap(err, "decode base64"))
			}
			if f.Encoding == encodingBase64Text {
				rec[f.Name] = string(b)
			} else {
				rec[f.Name] = b
			}
		case f.Encoding != "":
			return nil, r.formatErr("unknown encoding "+f.Encoding, nil)
		default:
			rec[f.Name] = f.Value
		}
	}
	return rec, nil
}

func (r *Reader) formatErr(reason string, err error) error {
	line, _ := r.dec.InputPos()
	return &FormatError{Line: line, Reason: reason, Err: err}
}

func attr(e xml.StartElement, name string) string {
	for _, a := range e.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}
