// Package docs registers the Web API's OpenAPI document with swaggo/swag
// so services/api can serve it through swaggo/http-swagger. Hand-maintained
// rather than swag-init-generated (no network access to run swag here),
// kept deliberately small: the route-level @Summary/@Tags annotations in
// services/api are the source of truth a real `swag init` run would fold
// back into this template.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/status": {
            "get": {
                "description": "Returns the current controller state snapshot",
                "produces": ["application/json"],
                "tags": ["Status"],
                "summary": "Controller status",
                "responses": {
                    "200": { "description": "OK" }
                }
            }
        }
    }
}`

// SwaggerInfo holds the generated Swagger document metadata. Host stays
// empty and BasePath "/"; nothing in this module changes them at run time.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Smokehouse Controller API",
	Description:      "Web API for the smokehouse/curing-chamber controller (process control, profiles, flash, alerting, watchdog).",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
