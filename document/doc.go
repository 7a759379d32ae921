/*
Package document defines schema based models over SurrealDB.

A schema declares stored and virtual fields, document methods, model
statics and hooks run around validate, save, update, remove and find.
Registering a schema declares its table, fields and indexes and returns a
Model. Schemas can be written in Go or loaded from a directory of YAML or
JSON files.

# Defining a model

	schema := document.DefineSchema(document.FieldsOf(document.Fields{
	    "name":  {Type: document.String, Required: true, Unique: true},
	    "price": {Type: document.Number, Default: 0},
	    "label": {Type: document.Virtual, Get: func(d *document.Document) any {
	        return fmt.Sprintf("%v (%v)", d.Get("name"), d.Get("price"))
	    }},
	}), document.Definition{})

	products, err := document.Register(ctx, conn, "Product", schema)

	chair, err := products.Create(ctx, map[string]any{"name": "Chair", "price": 40})

# Loading a directory

	# schemas/Product.yaml
	fields:
	  name: {type: string, required: true, unique: true}
	  address: {type: object, schema: Address}

	# schemas/Address.yaml
	sub_document: true
	fields:
	  street: {type: string}

	models, err := document.LoadModels(ctx, conn, "schemas")

# Transactions

	tx, err := conn.StartTransaction(ctx)
	defer tx.Rollback()

	_, err = products.Create(ctx, props, document.WithTx(tx))
	err = tx.Commit(ctx)
*/
package document
