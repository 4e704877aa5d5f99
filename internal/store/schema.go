package store

const schema = `
CREATE TABLE IF NOT EXISTS unsubscribed (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    mailto_link TEXT UNIQUE
);
`
