package domain

// Models returns every persisted model, in an order that satisfies foreign keys on creation.
func Models() []interface{} {
	return []interface{}{
		&User{},
		&Session{},
		&Post{},
		&Like{},
		&Comment{},
		&Follow{},
		&Share{},
	}
}
