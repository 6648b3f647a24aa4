package appfs

import "embed"

// FS holds the migrations and assets shipped with the binary.
//go:embed migrations/*.sql assets/*.gz assets/templates/email/*
var FS embed.FS
