package columnar

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/logeagle/logeagle/internal/model"
)

// arrowType maps a model field type to its Arrow physical type. Timestamps
// are epoch milliseconds in UTC.
func arrowType(t model.FieldType) arrow.DataType {
	switch t {
	case model.TypeInt:
		return arrow.PrimitiveTypes.Int64
	case model.TypeFloat:
		return arrow.PrimitiveTypes.Float64
	case model.TypeTimestamp:
		return arrow.FixedWidthTypes.Timestamp_ms
	default:
		return arrow.BinaryTypes.String
	}
}

// arrowSchema converts a model Schema to an Arrow schema.
func arrowSchema(s *model.Schema) *arrow.Schema {
	fields := make([]arrow.Field, 0, s.Len())
	for _, f := range s.Fields() {
		fields = append(fields, arrow.Field{
			Name:     f.Name,
			Type:     arrowType(f.Type),
			Nullable: f.Nullable,
		})
	}
	return arrow.NewSchema(fields, nil)
}

// buildArrowRecord materializes a batch as one Arrow record. The caller
// releases the returned record.
func buildArrowRecord(schema *model.Schema, batch *model.Batch) arrow.Record {
	as := arrowSchema(schema)
	bld := array.NewRecordBuilder(memory.DefaultAllocator, as)
	defer bld.Release()

	for i, f := range schema.Fields() {
		appendColumn(bld.Field(i), f, batch.Records)
	}
	return bld.NewRecord()
}

// appendColumn appends one column's values across all records. A value
// that does not fit the column type becomes null.
func appendColumn(builder array.Builder, f model.Field, records []model.Record) {
	for _, rec := range records {
		v := rec.Values[f.Name]
		if v == nil {
			builder.AppendNull()
			continue
		}
		switch b := builder.(type) {
		case *array.StringBuilder:
			if s, ok := v.(string); ok {
				b.Append(s)
			} else {
				b.AppendNull()
			}
		case *array.Int64Builder:
			switch n := v.(type) {
			case int64:
				b.Append(n)
			case float64:
				b.Append(int64(n))
			default:
				b.AppendNull()
			}
		case *array.Float64Builder:
			switch n := v.(type) {
			case float64:
				b.Append(n)
			case int64:
				// Column widened after this record was buffered.
				b.Append(float64(n))
			default:
				b.AppendNull()
			}
		case *array.TimestampBuilder:
			if ms, ok := v.(int64); ok {
				b.Append(arrow.Timestamp(ms))
			} else {
				b.AppendNull()
			}
		default:
			builder.AppendNull()
		}
	}
}
