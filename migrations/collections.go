package migrations

import (
	"github.com/pocketbase/pocketbase/core"
)

// idPattern accepts both PocketBase ids and the UUIDs generated by the
// services for tamper, liveness and audit rows
const idPattern = `^[a-z0-9-]+$`

func newCollection(name string) *core.Collection {
	collection := core.NewBaseCollection(name)
	if id, ok := collection.Fields.GetByName("id").(*core.TextField); ok {
		id.Pattern = idPattern
		id.Max = 36
	}
	collection.Fields.Add(
		&core.AutodateField{Name: "created", OnCreate: true},
		&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
	)
	return collection
}

func text(name string, required bool) *core.TextField {
	return &core.TextField{Name: name, Required: required, Max: 255}
}

func number(name string, onlyInt bool) *core.NumberField {
	return &core.NumberField{Name: name, OnlyInt: onlyInt}
}

func flag(name string) *core.BoolField {
	return &core.BoolField{Name: name}
}

func date(name string, required bool) *core.DateField {
	return &core.DateField{Name: name, Required: required}
}

func list(name string) *core.JSONField {
	return &core.JSONField{Name: name, MaxSize: 1 << 16}
}

func choice[T ~string](name string, required bool, values ...T) *core.SelectField {
	options := make([]string, 0, len(values))
	for _, v := range values {
		options = append(options, string(v))
	}
	return &core.SelectField{Name: name, Required: required, MaxSelect: 1, Values: options}
}

func saveAll(app core.App, collections ...*core.Collection) error {
	for _, collection := range collections {
		if err := app.Save(collection); err != nil {
			return err
		}
	}
	return nil
}

// dropAll deletes the named collections in reverse order
func dropAll(app core.App, names ...string) error {
	for i := len(names) - 1; i >= 0; i-- {
		collection, err := app.FindCollectionByNameOrId(names[i])
		if err != nil {
			return err
		}
		if err := app.Delete(collection); err != nil {
			return err
		}
	}
	return nil
}
