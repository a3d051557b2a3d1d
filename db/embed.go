// Package db embeds the database schema and seed data.
package db

import _ "embed"

// Schema contains the DDL statements for the coupon, usage and settlement tables.
//
//go:embed migrations/001_schema.sql
var Schema string

// Seed contains sample partners and coupons for local environments.
//
//go:embed seed/seed.json
var Seed []byte
