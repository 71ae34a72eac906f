package store

const Schema = `
CREATE TABLE IF NOT EXISTS media (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	status INTEGER NOT NULL DEFAULT 0,
	url TEXT NOT NULL UNIQUE,
	filename TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL DEFAULT '',
	length INTEGER NOT NULL DEFAULT 0,
	filesize INTEGER NOT NULL DEFAULT 0,
	metadata TEXT NOT NULL DEFAULT '',
	metadata_time INTEGER NOT NULL DEFAULT 0,
	error_message TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS playlist (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	media INTEGER NOT NULL UNIQUE REFERENCES media(id),
	queue_time INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	media INTEGER NOT NULL REFERENCES media(id),
	queue_time INTEGER NOT NULL,
	start_time INTEGER NOT NULL DEFAULT 0,
	end_time INTEGER NOT NULL DEFAULT 0,
	finish_reason INTEGER,
	skip_count INTEGER NOT NULL DEFAULT 0,
	skips_needed INTEGER NOT NULL DEFAULT 0
);
`
