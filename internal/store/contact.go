package store

import "database/sql"

// UpsertContact inserts or updates an address-to-name mapping.
func (db *DB) UpsertContact(c *Contact) error {
	_, err := db.Exec(`
		INSERT INTO contacts (address, name) VALUES (?, ?)
		ON CONFLICT(address) DO UPDATE SET name = excluded.name`,
		c.Address, c.Name)
	return err
}

// GetContact returns the contact for an address, or nil when unknown.
func (db *DB) GetContact(address string) (*Contact, error) {
	var c Contact
	err := db.QueryRow(`SELECT address, name FROM contacts WHERE address = ?`, address).
		Scan(&c.Address, &c.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListContacts returns all archived contacts.
func (db *DB) ListContacts() ([]Contact, error) {
	rows, err := db.Query(`SELECT address, name FROM contacts ORDER BY address`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var contacts []Contact
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.Address, &c.Name); err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}
