package datawrapper

import (
	"context"
	"fmt"
	"reflect"
)

// MetaIDOffset is the first id reserved for seeded meta data rows
const MetaIDOffset = 100000

// MetaEntity is the base of reference tables whose rows are declared in
// code and seeded when the connection is added.
//
// Usage:
//
//	type Currency struct {
//	    bun.BaseModel `bun:"table:currencies,alias:cur"`
//	    datawrapper.MetaEntity
//	    Symbol string `bun:"symbol" json:"symbol"`
//	}
//
//	func (*Currency) MetaData() []datawrapper.MetaRecord {
//	    return []datawrapper.MetaRecord{
//	        &Currency{MetaEntity: datawrapper.MetaEntity{Name: "Euro", IsDefault: true}, Symbol: "€"},
//	        &Currency{MetaEntity: datawrapper.MetaEntity{Name: "Dollar"}, Symbol: "$"},
//	    }
//	}
type MetaEntity struct {
	ID          int64   `bun:"id,pk" json:"id"`
	Code        string  `bun:"code,notnull,unique,type:varchar(36)" json:"code"`
	Name        string  `bun:"name,notnull" json:"name" validate:"required"`
	IsDefault   bool    `bun:"is_default,notnull,default:false" json:"is_default"`
	Description *string `bun:"description" json:"description,omitempty"`
	BaseEntity
}

// Meta gives the seeding helpers access to the embedded MetaEntity
func (m *MetaEntity) Meta() *MetaEntity {
	return m
}

// EnsureCode generates a code when none is set
func (m *MetaEntity) EnsureCode() {
	if m.Code == "" {
		m.Code = NewCode()
	}
}

// PublicCode returns the external identifier
func (m *MetaEntity) PublicCode() string {
	return m.Code
}

// EntityID returns the primary key
func (m *MetaEntity) EntityID() int64 {
	return m.ID
}

// MetaRecord is implemented by every type embedding MetaEntity
type MetaRecord interface {
	Meta() *MetaEntity
}

// MetaDataProvider is implemented by meta entities declaring seed rows.
// Every record must have the concrete type of the provider.
type MetaDataProvider interface {
	MetaData() []MetaRecord
}

// SeedMetaData replaces the seeded rows of model's table: rows with
// id >= MetaIDOffset are removed, then every declared record is inserted
// with id MetaIDOffset+index. Both steps run in one transaction.
func SeedMetaData(ctx context.Context, c *Conn, model MetaDataProvider) error {
	records := model.MetaData()
	if len(records) == 0 {
		return nil
	}

	typ := reflect.TypeOf(model)
	rows := reflect.MakeSlice(reflect.SliceOf(typ), 0, len(records))
	for i, rec := range records {
		if reflect.TypeOf(rec) != typ {
			return fmt.Errorf("datawrapper: meta data of %s: record %d has type %T", entityName(model), i, rec)
		}
		rec.Meta().ID = int64(MetaIDOffset + i)
		if err := PrepareInsert(ctx, rec); err != nil {
			return err
		}
		rows = reflect.Append(rows, reflect.ValueOf(rec))
	}

	slice := reflect.New(rows.Type())
	slice.Elem().Set(rows)

	err := c.Transaction(ctx, func(tx *Transaction) error {
		db := tx.Runner()

		_, err := db.NewDelete().
			Model(model).
			Where("id >= ?", MetaIDOffset).
			ForceDelete().
			Exec(ctx)
		if err != nil {
			return wrapError(err, "SeedMetaData.Delete")
		}

		if _, err := db.NewInsert().Model(slice.Interface()).Exec(ctx); err != nil {
			return writeError(model, err, "SeedMetaData.Insert")
		}
		return nil
	})
	if err != nil {
		return err
	}

	c.logger.DebugContext(ctx, "meta data seeded",
		"entity", entityName(model), "rows", len(records))
	return nil
}

// MetaDataByCode indexes records by code. Records without a code are skipped.
func MetaDataByCode[T MetaRecord](records []T) map[string]T {
	out := make(map[string]T, len(records))
	for _, r := range records {
		if code := r.Meta().Code; code != "" {
			out[code] = r
		}
	}
	return out
}

// MetaDataByName indexes records by name
func MetaDataByName[T MetaRecord](records []T) map[string]T {
	out := make(map[string]T, len(records))
	for _, r := range records {
		out[r.Meta().Name] = r
	}
	return out
}
