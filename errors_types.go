package couchdiscover

import "fmt"

// AddNodeError is returned when couchdb didn't acknowledge an add_node request
type AddNodeError struct {
	// Host is the hostname of the node we tried to add
	Host string

	// Port is the port of the node we tried to add
	Port int

	// Method is the http method of the request
	Method string

	// URL is the url of the request without credentials
	URL string

	// RequestBody is the request body with the password redacted
	RequestBody string

	// StatusCode is the http status code returned by couchdb
	StatusCode int

	// ResponseBody is the body returned by couchdb
	ResponseBody string
}

// Error formats the request and response context
func (e *AddNodeError) Error() string {
	return fmt.Sprintf("error adding node %s:%d req(%s %s %s) resp(%d %s)",
		e.Host, e.Port, e.Method, e.URL, e.RequestBody, e.StatusCode, e.ResponseBody)
}
