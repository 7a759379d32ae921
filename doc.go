/*
Package datawrapper reduces the boilerplate of persistence code built on Bun
(PostgreSQL) and, through the document subpackage, on SurrealDB.

It provides:
  - Embeddable entities with audit columns, soft delete and generated codes
  - Validation before persist with per-field errors
  - Transaction-aware CRUD and bulk helpers using Go generics
  - Named connections with model binding and meta data seeding
  - Tree assembly, file attachments and detail-aware serialization
  - Rich error handling with PostgreSQL error parsing
  - Configurable observability (logging, metrics, tracing)

# Entities

	type Category struct {
	    bun.BaseModel `bun:"table:categories,alias:c"`
	    datawrapper.EntityWithCodeNameDesc
	    ParentID *int64      `bun:"parent_id" json:"parent_id,omitempty"`
	    Children []*Category `bun:"-" json:"children,omitempty"`
	}

# Connections

	groups := datawrapper.EntityGroups{
	    "catalog": {(*Category)(nil), (*Product)(nil)},
	}

	cfg, err := datawrapper.LoadConfig("database.yaml")
	if err != nil {
	    log.Fatal(err)
	}

	dw, err := datawrapper.Build(ctx, groups, cfg, datawrapper.WithLogger(slog.Default()))
	if err != nil {
	    log.Fatal(err)
	}
	defer dw.Close()

	conn, err := datawrapper.ConnectionFor[Category](dw)

# CRUD

	ctx = datawrapper.WithActor(ctx, userCode)

	cat, err := datawrapper.CreateAndSave(ctx, conn, &Category{...})

	err = datawrapper.UpdateEntity(ctx, conn, cat, map[string]any{"name": "Chairs"})

	all, err := datawrapper.FindAll[Category](ctx, conn, nil)
	roots, err := datawrapper.ToTreeByField(all, datawrapper.DefaultTreeOptions())

# Transactions

	tx, err := dw.StartTransaction(ctx, "main")
	if err != nil {
	    return err
	}
	defer tx.Rollback()

	if _, err := datawrapper.CreateAndSave(ctx, conn, &p, datawrapper.WithTransaction(tx)); err != nil {
	    return err
	}
	return tx.Commit()

# Error Handling

	_, err := datawrapper.CreateAndSave(ctx, conn, &cat)
	if vErr, ok := datawrapper.AsValidationError(err); ok {
	    // vErr.Field("name") lists the messages of the name field
	}
	if datawrapper.IsNotFound(err) {
	    // Handle not found
	}

# Serialization

	body, err := datawrapper.Serialize(roots, withDetails)
*/
package datawrapper
