package datawrapper

import (
	"context"

	"github.com/uptrace/bun"
)

// StorageInfo locates the stored content of a File
type StorageInfo struct {
	BucketName string `json:"bucket_name"`
	Key        string `json:"key"`
	URL        string `json:"url"`
}

// File is the base of file attachment entities. Each file belongs to one
// entity instance, identified by type name, id and code.
//
// Usage:
//
//	type ProductImage struct {
//	    bun.BaseModel `bun:"table:product_images,alias:pi"`
//	    datawrapper.File
//	}
type File struct {
	EntityWithCode
	FileName           string      `bun:"file_name,notnull" json:"file_name" validate:"required"`
	FullFilePath       string      `bun:"full_file_path,notnull" json:"full_file_path" expose:"details"`
	FileLabel          *string     `bun:"file_label" json:"file_label,omitempty"`
	StorageType        string      `bun:"storage_type,notnull" json:"storage_type" expose:"details"`
	StorageInfo        StorageInfo `bun:"storage_info,type:jsonb" json:"storage_info" expose:"details"`
	EntityTypeName     string      `bun:"entity_type_name,notnull" json:"entity_type_name" validate:"required"`
	EntityInstanceID   int64       `bun:"entity_instance_id,notnull" json:"entity_instance_id"`
	EntityInstanceCode *string     `bun:"entity_instance_code" json:"entity_instance_code,omitempty"`
	ContentType        string      `bun:"content_type,notnull" json:"content_type"`
	ContentEncoding    string      `bun:"content_encoding,notnull" json:"content_encoding"`
	ContentLength      int64       `bun:"content_length,notnull" json:"content_length"`
	FileURL            *string     `bun:"file_url" json:"file_url,omitempty"`
	ETag               *string     `bun:"e_tag" json:"e_tag,omitempty"`
}

// FileRecord gives the helpers access to the embedded File
func (f *File) FileRecord() *File {
	return f
}

// FileBasicInfo is the short description of a file
type FileBasicInfo struct {
	ID              int64   `json:"id"`
	FileName        string  `json:"file_name"`
	FileLabel       *string `json:"file_label,omitempty"`
	ContentType     string  `json:"content_type"`
	ContentLength   int64   `json:"content_length"`
	ContentEncoding string  `json:"content_encoding,omitempty"`
}

// BasicInfo returns the short description of f
func (f *File) BasicInfo() FileBasicInfo {
	return FileBasicInfo{
		ID:              f.ID,
		FileName:        f.FileName,
		FileLabel:       f.FileLabel,
		ContentType:     f.ContentType,
		ContentLength:   f.ContentLength,
		ContentEncoding: f.ContentEncoding,
	}
}

// FileModel is implemented by every type embedding File
type FileModel interface {
	FileRecord() *File
}

// FileOwner receives the files attached to it by MapFilesToEntities
type FileOwner[F FileModel] interface {
	EntityID() int64
	SetFiles(files []F)
}

// FindFilesOptions selects the owners whose files are returned. Single and
// list filters may be combined; a single value wins over a list of the same
// kind.
type FindFilesOptions struct {
	InstanceID    int64
	InstanceIDs   []int64
	InstanceCode  string
	InstanceCodes []string
	WithDetails   bool
}

// basicFileColumns are loaded when details are not requested
var basicFileColumns = []string{
	"id", "code", "file_name", "file_label", "content_type", "content_length",
	"content_encoding", "entity_type_name", "entity_instance_id", "entity_instance_code",
}

// FindFilesFor returns the files attached to instances of entityTypeName,
// ordered by creation time then file name.
//
// Usage:
//
//	images, err := datawrapper.FindFilesFor[ProductImage](ctx, conn, "Product",
//	    datawrapper.FindFilesOptions{InstanceIDs: productIDs})
func FindFilesFor[T any](ctx context.Context, c *Conn, entityTypeName string, filter FindFilesOptions, opts ...SaveOption) ([]*T, error) {
	var files []*T

	q := c.runner(newSaveOptions(opts)).NewSelect().
		Model(&files).
		Where("?TableAlias.entity_type_name = ?", entityTypeName)

	switch {
	case filter.InstanceID != 0:
		q = q.Where("?TableAlias.entity_instance_id = ?", filter.InstanceID)
	case filter.InstanceIDs != nil:
		q = q.Where("?TableAlias.entity_instance_id IN (?)", bun.In(filter.InstanceIDs))
	}

	switch {
	case filter.InstanceCode != "":
		q = q.Where("?TableAlias.entity_instance_code = ?", filter.InstanceCode)
	case filter.InstanceCodes != nil:
		q = q.Where("?TableAlias.entity_instance_code IN (?)", bun.In(filter.InstanceCodes))
	}

	if !filter.WithDetails {
		q = q.Column(basicFileColumns...)
	}

	err := q.OrderExpr("?TableAlias.created_at ASC").
		OrderExpr("?TableAlias.file_name ASC").
		Scan(ctx)
	if err != nil {
		return nil, wrapError(err, "FindFilesFor")
	}

	return files, nil
}

// MapFilesToEntities attaches to every owner the files whose
// entity_instance_id equals the owner id. Owners without files receive an
// empty list.
func MapFilesToEntities[E FileOwner[F], F FileModel](owners []E, files []F) []E {
	byOwner := make(map[int64][]F)
	for _, f := range files {
		id := f.FileRecord().EntityInstanceID
		byOwner[id] = append(byOwner[id], f)
	}

	for _, owner := range owners {
		attached := byOwner[owner.EntityID()]
		if attached == nil {
			attached = []F{}
		}
		owner.SetFiles(attached)
	}
	return owners
}
