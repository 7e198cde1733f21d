// Package mangadex is a read-only client for the MangaDex catalog API.
//
// It covers the four lookups the tracker needs: title search, the most recent
// translated chapter of a series, the series cover image, and descriptive
// series info. Responses are decoded into small wire structs and converted at
// this boundary, so chapter numbers leave the package as chapter.Number and
// never as loosely typed JSON.
//
// Transport failures and non-2xx responses are wrapped in
// services.ErrSourceUnavailable with the HTTP status in the message. A
// successful response that contains no chapter is services.ErrNotFound.
package mangadex
