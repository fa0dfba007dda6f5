// Package stub is the request-matching core served by the protomock façade.
//
// A Stub pairs a request pattern with a canned response. Stubs live in a
// Store, are matched by a Handler, and every served request is recorded in a
// bounded Journal. Matching is deliberately small: HTTP method, one URL
// matcher (exact URL, exact path or path regex) and exact header values.
//
// Stubs are written in JSON or YAML:
//
//	{
//	  "priority": 1,
//	  "request":  {"method": "POST", "urlPath": "/echo.Echo/Say"},
//	  "response": {
//	    "status":   200,
//	    "headers":  {"streamSize": "3"},
//	    "jsonBody": {"message": "hello"}
//	  }
//	}
package stub
