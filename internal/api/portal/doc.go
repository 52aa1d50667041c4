// Package portal is the HTTP JSON client of the attendance portal API.
//
// It owns the wire format: the success/data/message envelope, the Indonesian
// field names and the status codes never leave this package. Callers get
// domain types, *APIError for requests the portal declined and wrapped
// transport errors for everything else.
package portal
