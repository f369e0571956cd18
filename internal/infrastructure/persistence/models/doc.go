// Package models contains GORM persistence models that map to database tables.
// They are kept apart from the domain types so the domain stays free of ORM
// tags; each model has ToDomain and FromDomain mappers.
//
// Structure:
//   - base.go: BaseModel and AggregateModel
//   - leakage_case.go: cases with their activity and evidence child tables
//   - discrepancy_result.go: evaluation results
//   - reference.go: reference data tables read by the GORM reference provider
package models
