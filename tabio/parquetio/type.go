package parquetio

import (
	"fmt"

	"github.com/fraugster/parquet-go/parquet"
	"github.com/fraugster/parquet-go/parquetschema"
	"github.com/woainirjy/tabular"
	"github.com/woainirjy/tabular/tqe"
)

var (
	repetitionRequired = parquet.FieldRepetitionTypePtr(parquet.FieldRepetitionType_REQUIRED)
	repetitionOptional = parquet.FieldRepetitionTypePtr(parquet.FieldRepetitionType_OPTIONAL)
	repetitionRepeated = parquet.FieldRepetitionTypePtr(parquet.FieldRepetitionType_REPEATED)

	convertedUTF8        = parquet.ConvertedTypePtr(parquet.ConvertedType_UTF8)
	convertedMap         = parquet.ConvertedTypePtr(parquet.ConvertedType_MAP)
	convertedMapKeyValue = parquet.ConvertedTypePtr(parquet.ConvertedType_MAP_KEY_VALUE)
	convertedList        = parquet.ConvertedTypePtr(parquet.ConvertedType_LIST)
	convertedInt32       = parquet.ConvertedTypePtr(parquet.ConvertedType_INT_32)
	convertedInt64       = parquet.ConvertedTypePtr(parquet.ConvertedType_INT_64)

	logicalString         = &parquet.LogicalType{STRING: &parquet.StringType{}}
	logicalMap            = &parquet.LogicalType{MAP: &parquet.MapType{}}
	logicalList           = &parquet.LogicalType{LIST: &parquet.ListType{}}
	logicalInt32          = &parquet.LogicalType{INTEGER: &parquet.IntType{BitWidth: 32, IsSigned: true}}
	logicalInt64          = &parquet.LogicalType{INTEGER: &parquet.IntType{BitWidth: 64, IsSigned: true}}
	logicalTimestampNanos = &parquet.LogicalType{TIMESTAMP: &parquet.TimestampType{
		Unit: &parquet.TimeUnit{NANOS: &parquet.NanoSeconds{}},
	}}
)

func newSchemaDefinition(s *tabular.Schema) (*parquetschema.SchemaDefinition, error) {
	children := make([]*parquetschema.ColumnDefinition, 0, s.Len())
	for _, c := range s.Columns {
		cd, err := newColumnDefinition(c.Name, c.Type)
		if err != nil {
			return nil, err
		}
		children = append(children, cd)
	}
	sd := &parquetschema.SchemaDefinition{
		RootColumn: &parquetschema.ColumnDefinition{
			Children: children,
			SchemaElement: &parquet.SchemaElement{
				Name: "table",
			},
		},
	}
	return sd, sd.ValidateStrict()
}

func newColumnDefinition(name string, typ *tabular.Type) (*parquetschema.ColumnDefinition, error) {
	switch typ.Kind {
	case tabular.KindBool:
		return newPrimitiveColumnDefinition(name, parquet.Type_BOOLEAN, nil, nil)
	case tabular.KindInt32:
		return newPrimitiveColumnDefinition(name, parquet.Type_INT32, convertedInt32, logicalInt32)
	case tabular.KindInt64:
		return newPrimitiveColumnDefinition(name, parquet.Type_INT64, convertedInt64, logicalInt64)
	case tabular.KindFloat64:
		return newPrimitiveColumnDefinition(name, parquet.Type_DOUBLE, nil, nil)
	case tabular.KindString:
		return newPrimitiveColumnDefinition(name, parquet.Type_BYTE_ARRAY, convertedUTF8, logicalString)
	case tabular.KindBytes:
		return newPrimitiveColumnDefinition(name, parquet.Type_BYTE_ARRAY, nil, nil)
	case tabular.KindTime:
		return newPrimitiveColumnDefinition(name, parquet.Type_INT64, nil, logicalTimestampNanos)
	case tabular.KindArray:
		return newListColumnDefinition(name, typ.Elem)
	case tabular.KindStruct:
		return newStructColumnDefinition(name, typ)
	case tabular.KindMap:
		return newMapColumnDefinition(name, typ.Key, typ.Val)
	default:
		return nil, tqe.E(tqe.Unsupported, "parquet: unsupported type %s", typ)
	}
}

func newPrimitiveColumnDefinition(name string, t parquet.Type, c *parquet.ConvertedType, l *parquet.LogicalType) (*parquetschema.ColumnDefinition, error) {
	return &parquetschema.ColumnDefinition{
		SchemaElement: &parquet.SchemaElement{
			Type:           parquet.TypePtr(t),
			RepetitionType: repetitionOptional,
			Name:           name,
			ConvertedType:  c,
			LogicalType:    l,
		},
	}, nil
}

func newListColumnDefinition(name string, elem *tabular.Type) (*parquetschema.ColumnDefinition, error) {
	element, err := newColumnDefinition("element", elem)
	if err != nil {
		return nil, err
	}
	return &parquetschema.ColumnDefinition{
		Children: []*parquetschema.ColumnDefinition{
			{
				Children: []*parquetschema.ColumnDefinition{element},
				SchemaElement: &parquet.SchemaElement{
					RepetitionType: repetitionRepeated,
					Name:           "list",
					NumChildren:    int32Ptr(1),
				},
			},
		},
		SchemaElement: &parquet.SchemaElement{
			RepetitionType: repetitionOptional,
			Name:           name,
			NumChildren:    int32Ptr(1),
			ConvertedType:  convertedList,
			LogicalType:    logicalList,
		},
	}, nil
}

func newMapColumnDefinition(name string, keyType, valType *tabular.Type) (*parquetschema.ColumnDefinition, error) {
	key, err := newColumnDefinition("key", keyType)
	if err != nil {
		return nil, err
	}
	key.SchemaElement.RepetitionType = repetitionRequired
	value, err := newColumnDefinition("value", valType)
	if err != nil {
		return nil, err
	}
	value.SchemaElement.RepetitionType = repetitionRequired
	return &parquetschema.ColumnDefinition{
		Children: []*parquetschema.ColumnDefinition{
			{
				Children: []*parquetschema.ColumnDefinition{key, value},
				SchemaElement: &parquet.SchemaElement{
					RepetitionType: repetitionRepeated,
					Name:           "key_value",
					NumChildren:    int32Ptr(2),
					ConvertedType:  convertedMapKeyValue,
				},
			},
		},
		SchemaElement: &parquet.SchemaElement{
			RepetitionType: repetitionOptional,
			Name:           name,
			NumChildren:    int32Ptr(1),
			ConvertedType:  convertedMap,
			LogicalType:    logicalMap,
		},
	}, nil
}

func newStructColumnDefinition(name string, typ *tabular.Type) (*parquetschema.ColumnDefinition, error) {
	if len(typ.Fields) == 0 {
		return nil, tqe.E(tqe.Unsupported, "parquet: empty struct type")
	}
	var children []*parquetschema.ColumnDefinition
	for _, f := range typ.Fields {
		cd, err := newColumnDefinition(f.Name, f.Type)
		if err != nil {
			return nil, err
		}
		children = append(children, cd)
	}
	return &parquetschema.ColumnDefinition{
		Children: children,
		SchemaElement: &parquet.SchemaElement{
			RepetitionType: repetitionOptional,
			Name:           name,
			NumChildren:    int32Ptr(len(children)),
		},
	}, nil
}

func int32Ptr(i int) *int32 {
	i32 := int32(i)
	return &i32
}

// newSchema maps a parquet schema definition back to the engine's
// schema.  Only shapes this package writes are recognized; anything
// else is reported as unsupported.
func newSchema(children []*parquetschema.ColumnDefinition) (*tabular.Schema, error) {
	schema := &tabular.Schema{}
	for _, c := range children {
		typ, err := newType(c)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", c.SchemaElement.Name, err)
		}
		schema.Columns = append(schema.Columns, tabular.Column{
			Name: c.SchemaElement.Name,
			Type: typ,
		})
	}
	return schema, nil
}

func newType(cd *parquetschema.ColumnDefinition) (*tabular.Type, error) {
	se := cd.SchemaElement
	if se.Type != nil {
		return newPrimitiveType(se)
	}
	if se.ConvertedType != nil {
		switch *se.ConvertedType {
		case parquet.ConvertedType_MAP:
			key, err := newType(cd.Children[0].Children[0])
			if err != nil {
				return nil, err
			}
			val, err := newType(cd.Children[0].Children[1])
			if err != nil {
				return nil, err
			}
			return tabular.MapOf(key, val), nil
		case parquet.ConvertedType_LIST:
			elem, err := newType(cd.Children[0].Children[0])
			if err != nil {
				return nil, err
			}
			return tabular.ArrayOf(elem), nil
		}
	}
	fields, err := newSchema(cd.Children)
	if err != nil {
		return nil, err
	}
	return tabular.StructOf(fields.Columns...), nil
}

func newPrimitiveType(s *parquet.SchemaElement) (*tabular.Type, error) {
	switch *s.Type {
	case parquet.Type_BOOLEAN:
		return tabular.TypeBool, nil
	case parquet.Type_INT32:
		return tabular.TypeInt32, nil
	case parquet.Type_INT64:
		if s.IsSetLogicalType() && s.LogicalType.IsSetTIMESTAMP() {
			return tabular.TypeTime, nil
		}
		return tabular.TypeInt64, nil
	case parquet.Type_DOUBLE:
		return tabular.TypeFloat64, nil
	case parquet.Type_FLOAT:
		return tabular.TypeFloat64, nil
	case parquet.Type_BYTE_ARRAY:
		if s.IsSetLogicalType() && s.LogicalType.IsSetSTRING() ||
			s.IsSetConvertedType() && *s.ConvertedType == parquet.ConvertedType_UTF8 {
			return tabular.TypeString, nil
		}
		return tabular.TypeBytes, nil
	default:
		return nil, tqe.E(tqe.Unsupported, "parquet: unsupported physical type %s", s.Type)
	}
}
