package errors

import "errors"

var (
	// ErrTenantNotFound indicates that no tenant record exists for the given ID
	ErrTenantNotFound = errors.New("tenant record not found")

	// ErrNoCustomerRef indicates that the tenant has no bound billing customer
	ErrNoCustomerRef = errors.New("no billing customer bound for tenant")
)
