package dataset

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"db-transfer/internal/transfer"
)

// Writer encodes a dataset as it is streamed. It implements transfer.Sink.
type Writer struct {
	buf   *bufio.Writer
	enc   *xml.Encoder
	table string
	rows  int
}

var _ transfer.Sink = (*Writer)(nil)

func NewWriter(w io.Writer) *Writer {
	buf := bufio.NewWriter(w)
	enc := xml.NewEncoder(buf)
	enc.Indent("", "  ")
	return &Writer{buf: buf, enc: enc}
}

func (w *Writer) Begin(ctx context.Context, h transfer.Header) error {
	if err := w.enc.EncodeToken(xml.ProcInst{Target: "xml", Inst: []byte(`version="1.0" encoding="UTF-8"`)}); err != nil {
		return err
	}
	start := xml.StartElement{Name: xml.Name{Local: elemDataset}, Attr: []xml.Attr{
		{Name: xml.Name{Local: "version"}, Value: h.Version},
		{Name: xml.Name{Local: "timestamp"}, Value: formatTimestamp(h.Timestamp)},
	}}
	if h.Description != "" {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "description"}, Value: h.Description})
	}
	return w.enc.EncodeToken(start)
}

func (w *Writer) BeginTable(ctx context.Context, table, hash string) error {
	if w.table != "" {
		return errors.Errorf("dataset: table %s is still open", w.table)
	}
	w.table = table
	w.rows = 0
	return w.enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: elemTable}, Attr: []xml.Attr{
		{Name: xml.Name{Local: "name"}, Value: table},
		{Name: xml.Name{Local: "schemahash"}, Value: hash},
	}})
}

func (w *Writer) Record(ctx context.Context, table string, rec transfer.Record) error {
	if table != w.table {
		return errors.Errorf("dataset: record for %s while %q is open", table, w.table)
	}
	record := xml.StartElement{Name: xml.Name{Local: elemRecord}}
	if err := w.enc.EncodeToken(record); err != nil {
		return err
	}

	names := make([]string, 0, len(rec))
	for name := range rec {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := w.field(name, rec[name]); err != nil {
			return errors.Wrapf(err, "encode %s.%s", table, name)
		}
	}
	w.rows++
	return w.enc.EncodeToken(record.End())
}

func (w *Writer) field(name string, v any) error {
	start := xml.StartElement{Name: xml.Name{Local: elemField}, Attr: []xml.Attr{{Name: xml.Name{Local: "name"}, Value: name}}}
	var text string
	switch val := v.(type) {
	case nil:
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "null"}, Value: "true"})
	case []byte:
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "encoding"}, Value: encodingBase64})
		text = base64.StdEncoding.EncodeToString(val)
	default:
		s, err := formatValue(val)
		if err != nil {
			return err
		}
		text = s
		if !isCharData(s) {
			start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "encoding"}, Value: encodingBase64Text})
			text = base64.StdEncoding.EncodeToString([]byte(s))
		}
	}
	if err := w.enc.EncodeToken(start); err != nil {
		return err
	}
	if text != "" {
		if err := w.enc.EncodeToken(xml.CharData(text)); err != nil {
			return err
		}
	}
	return w.enc.EncodeToken(start.End())
}

func (w *Writer) EndTable(ctx context.Context, table string) error {
	if table != w.table {
		return errors.Errorf("dataset: end of %s while %q is open", table, w.table)
	}
	w.table = ""
	return w.enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: elemTable}})
}

func (w *Writer) End(ctx context.Context) error {
	if err := w.enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: elemDataset}}); err != nil {
		return err
	}
	if err := w.enc.Flush(); err != nil {
		return err
	}
	if _, err := w.buf.WriteString("\n"); err != nil {
		return err
	}
	return w.buf.Flush()
}

func formatValue(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case bool:
		if val {
			return "1", nil
		}
		return "0", nil
	case int:
		return strconv.Itoa(val), nil
	case int32:
		return strconv.FormatInt(int64(val), 10), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case uint64:
		return strconv.FormatUint(val, 10), nil
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case time.Time:
		return val.Format(timeLayout), nil
	case fmt.Stringer:
		return val.String(), nil
	default:
		return "", errors.Errorf("unsupported value type %T", v)
	}
}
