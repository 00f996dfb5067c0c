// Package orders is the work-order aggregate service.
//
// Submit is the single save operation for an order: it validates the
// header and items, fills in defaults (status open, payment cash), checks
// that the referenced client, vehicle and responsible collaborator exist,
// and then creates or updates the order through the store. The submitted
// items and collaborator ids always replace the stored sets.
//
// Every call runs under a bounded timeout. Full orders read through Get are
// kept in an LRU cache that every write to the same order invalidates.
package orders
