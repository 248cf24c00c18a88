// Package models contains the GORM persistence models. Domain types carry no
// ORM tags; each model maps to one table and converts with ToDomain and
// FromDomain.
package models
