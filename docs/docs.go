// Package docs holds the OpenAPI description served under /swagger.
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
        "/health": {
            "get": {
                "tags": ["health"],
                "summary": "Readiness probe",
                "responses": {
                    "200": {"description": "OK"},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/handler.errorPayload"}}
                }
            }
        },
        "/api/templates": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["templates"],
                "summary": "List templates",
                "parameters": [
                    {"type": "integer", "name": "limit", "in": "query"},
                    {"type": "integer", "name": "offset", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["templates"],
                "summary": "Upload a DOCX template",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"type": "file", "name": "file", "in": "formData", "required": true},
                    {"type": "string", "name": "customerId", "in": "formData"}
                ],
                "responses": {
                    "201": {"description": "Created"},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/handler.errorPayload"}}
                }
            }
        },
        "/api/templates/{id}/fill": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["instances"],
                "summary": "Fill a template and invite the signer",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "201": {"description": "Created"},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/handler.errorPayload"}}
                }
            }
        },
        "/api/sign/{token}/bootstrap": {
            "get": {
                "tags": ["sign"],
                "summary": "Load the signing page",
                "parameters": [{"type": "string", "name": "token", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.errorPayload"}}
                }
            }
        },
        "/api/sign/{token}/verify-otp": {
            "post": {
                "tags": ["sign"],
                "summary": "Verify the one-time code",
                "parameters": [{"type": "string", "name": "token", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK"},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.errorPayload"}}
                }
            }
        },
        "/api/sign/{token}/pdf": {
            "get": {
                "tags": ["sign"],
                "summary": "Stream the document to sign",
                "produces": ["application/pdf"],
                "parameters": [{"type": "string", "name": "token", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/sign/{token}/submit": {
            "post": {
                "tags": ["sign"],
                "summary": "Submit the drawn signature",
                "parameters": [{"type": "string", "name": "token", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK"},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/handler.errorPayload"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/handler.errorPayload"}}
                }
            }
        }
    },
    "definitions": {
        "handler.errorEnvelope": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "details": {"type": "object", "additionalProperties": {"type": "array", "items": {"type": "string"}}}
            }
        },
        "handler.errorPayload": {
            "type": "object",
            "properties": {
                "request_id": {"type": "string"},
                "error": {"$ref": "#/definitions/handler.errorEnvelope"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "DocSign API",
	Description:      "Template filling, invites and remote signing.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
