// Package server exposes the report lifecycle and the nearby heatmap over
// HTTP.
//
// Routing uses gorilla/mux. Every response is JSON except image downloads.
// Failures carry {"success":false,"error":"..."} with a status derived
// from the model error taxonomy:
//
//	ErrValidation    400
//	missing/invalid bearer token 401
//	ErrUnauthorized  403
//	ErrNotFound      404
//	ErrConflict      409
//	anything else    500
package server
