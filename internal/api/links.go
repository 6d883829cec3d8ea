package api

// Links maps operation paths to their RFC 8288 Link header values.
// Enables restish hypermedia navigation via `restish links <url>`.
var Links = map[string][]string{
	"/health": {
		`</api/v1/info>; rel="info"`,
		`</api/v1/layers>; rel="layers"`,
		`</api/v1/viewport>; rel="viewport"`,
		`</api/v1/datasets>; rel="datasets"`,
	},
	"/api/v1/info": {
		`</health>; rel="health"`,
		`</api/v1/layers>; rel="layers"`,
	},
	"/api/v1/layers": {
		`</api/v1/layers/{key}>; rel="item"`,
		`</api/v1/viewport>; rel="viewport"`,
	},
	"/api/v1/layers/{key}": {
		`</api/v1/layers>; rel="collection"`,
	},
	"/api/v1/viewport": {
		`</api/v1/legend>; rel="legend"`,
		`</api/v1/layers>; rel="layers"`,
	},
	"/api/v1/legend": {
		`</api/v1/viewport>; rel="viewport"`,
	},
	"/api/v1/datasets": {
		`</api/v1/datasets/{name}/features>; rel="item"`,
		`</api/v1/reload>; rel="reload"`,
	},
	"/api/v1/tables": {
		`</api/v1/query>; rel="query"`,
	},
}
