// Package swagger holds the OpenAPI document served under /swagger.
// Regenerate with swag init after changing handler annotations.
package swagger

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
                "produces": [
                    "application/json"
                ],
                "summary": "Liveness probe",
                "tags": [
                    "health"
                ],
                "responses": {
                    "200": {
                        "description": "200"
                    }
                }
            }
        },
        "/ready": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "summary": "Readiness probe",
                "tags": [
                    "health"
                ],
                "responses": {
                    "200": {
                        "description": "200"
                    },
                    "503": {
                        "description": "503"
                    }
                }
            }
        },
        "/status": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "summary": "Service status",
                "tags": [
                    "health"
                ],
                "responses": {
                    "200": {
                        "description": "200"
                    }
                }
            }
        },
        "/api/v1/events/ws": {
            "get": {
                "description": "Upgrades to a websocket that streams transition, workflow, validation and action events.",
                "summary": "Stream lifecycle events",
                "tags": [
                    "events"
                ],
                "responses": {
                    "101": {
                        "description": "101"
                    },
                    "400": {
                        "description": "websocket upgrade required",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "503": {
                        "description": "connection limit reached",
                        "schema": {
                            "type": "string"
                        }
                    }
                }
            }
        },
        "/api/v1/rules": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "summary": "List validation rules",
                "tags": [
                    "rules"
                ],
                "responses": {
                    "200": {
                        "description": "200"
                    }
                }
            },
            "post": {
                "produces": [
                    "application/json"
                ],
                "summary": "Create a custom validation rule",
                "tags": [
                    "rules"
                ],
                "parameters": [
                    {
                        "name": "rule",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "type": "object"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "201"
                    },
                    "400": {
                        "description": "400"
                    }
                }
            }
        },
        "/api/v1/rules/{id}": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "summary": "Get a validation rule",
                "tags": [
                    "rules"
                ],
                "parameters": [
                    {
                        "type": "string",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "200"
                    },
                    "404": {
                        "description": "404"
                    }
                }
            },
            "put": {
                "produces": [
                    "application/json"
                ],
                "summary": "Replace a custom validation rule",
                "tags": [
                    "rules"
                ],
                "parameters": [
                    {
                        "type": "string",
                        "name": "id",
                        "in": "path",
                        "required": true
                    },
                    {
                        "name": "rule",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "type": "object"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "200"
                    },
                    "400": {
                        "description": "400"
                    },
                    "404": {
                        "description": "404"
                    },
                    "423": {
                        "description": "423"
                    }
                }
            },
            "delete": {
                "produces": [
                    "application/json"
                ],
                "summary": "Delete a custom validation rule",
                "tags": [
                    "rules"
                ],
                "parameters": [
                    {
                        "type": "string",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "204": {
                        "description": "204"
                    },
                    "404": {
                        "description": "404"
                    },
                    "423": {
                        "description": "423"
                    }
                }
            }
        },
        "/api/v1/rules/{id}/toggle": {
            "post": {
                "produces": [
                    "application/json"
                ],
                "summary": "Activate or deactivate a rule",
                "tags": [
                    "rules"
                ],
                "parameters": [
                    {
                        "type": "string",
                        "name": "id",
                        "in": "path",
                        "required": true
                    },
                    {
                        "name": "toggle",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "type": "object"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "200"
                    },
                    "404": {
                        "description": "404"
                    }
                }
            }
        },
        "/api/v1/validate": {
            "post": {
                "produces": [
                    "application/json"
                ],
                "summary": "Validate an entity",
                "tags": [
                    "validation"
                ],
                "parameters": [
                    {
                        "name": "entity",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "type": "object"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "200"
                    },
                    "400": {
                        "description": "400"
                    }
                }
            }
        },
        "/api/v1/validate/autofix": {
            "post": {
                "produces": [
                    "application/json"
                ],
                "summary": "Apply available auto-fixes",
                "tags": [
                    "validation"
                ],
                "parameters": [
                    {
                        "name": "entity",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "type": "object"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "200"
                    },
                    "409": {
                        "description": "409"
                    }
                }
            }
        },
        "/api/v1/workflows": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "summary": "List workflows",
                "tags": [
                    "workflows"
                ],
                "responses": {
                    "200": {
                        "description": "200"
                    },
                    "503": {
                        "description": "503"
                    }
                }
            },
            "post": {
                "produces": [
                    "application/json"
                ],
                "summary": "Create a workflow",
                "tags": [
                    "workflows"
                ],
                "parameters": [
                    {
                        "name": "workflow",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "type": "object"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "201"
                    },
                    "400": {
                        "description": "400"
                    }
                }
            }
        },
        "/api/v1/workflows/{id}": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "summary": "Get a workflow",
                "tags": [
                    "workflows"
                ],
                "parameters": [
                    {
                        "type": "string",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "200"
                    },
                    "404": {
                        "description": "404"
                    }
                }
            },
            "patch": {
                "produces": [
                    "application/json"
                ],
                "summary": "Update workflow metadata",
                "tags": [
                    "workflows"
                ],
                "parameters": [
                    {
                        "type": "string",
                        "name": "id",
                        "in": "path",
                        "required": true
                    },
                    {
                        "name": "update",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "type": "object"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "200"
                    },
                    "400": {
                        "description": "400"
                    },
                    "404": {
                        "description": "404"
                    }
                }
            },
            "delete": {
                "produces": [
                    "application/json"
                ],
                "summary": "Delete a workflow",
                "tags": [
                    "workflows"
                ],
                "parameters": [
                    {
                        "type": "string",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "204": {
                        "description": "204"
                    },
                    "404": {
                        "description": "404"
                    },
                    "423": {
                        "description": "423"
                    }
                }
            }
        },
        "/api/v1/workflows/{id}/default": {
            "post": {
                "produces": [
                    "application/json"
                ],
                "summary": "Make a workflow the default of its task category",
                "tags": [
                    "workflows"
                ],
                "parameters": [
                    {
                        "type": "string",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "200"
                    },
                    "404": {
                        "description": "404"
                    }
                }
            }
        },
        "/api/v1/workflows/{id}/statuses": {
            "post": {
                "produces": [
                    "application/json"
                ],
                "summary": "Add a status",
                "tags": [
                    "statuses"
                ],
                "parameters": [
                    {
                        "type": "string",
                        "name": "id",
                        "in": "path",
                        "required": true
                    },
                    {
                        "name": "status",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "type": "object"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "201"
                    },
                    "400": {
                        "description": "400"
                    },
                    "423": {
                        "description": "423"
                    }
                }
            }
        },
        "/api/v1/workflows/{id}/statuses/{sid}": {
            "patch": {
                "produces": [
                    "application/json"
                ],
                "summary": "Update a status",
                "tags": [
                    "statuses"
                ],
                "parameters": [
                    {
                        "type": "string",
                        "name": "id",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "name": "sid",
                        "in": "path",
                        "required": true
                    },
                    {
                        "name": "update",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "type": "object"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "200"
                    },
                    "400": {
                        "description": "400"
                    },
                    "404": {
                        "description": "404"
                    },
                    "423": {
                        "description": "423"
                    }
                }
            },
            "delete": {
                "produces": [
                    "application/json"
                ],
                "summary": "Delete a status",
                "tags": [
                    "statuses"
                ],
                "parameters": [
                    {
                        "type": "string",
                        "name": "id",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "name": "sid",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "200"
                    },
                    "400": {
                        "description": "Status is the last or the default one"
                    },
                    "404": {
                        "description": "404"
                    },
                    "423": {
                        "description": "Status or workflow is locked"
                    }
                }
            }
        },
        "/api/v1/workflows/{id}/statuses/order": {
            "put": {
                "produces": [
                    "application/json"
                ],
                "summary": "Reorder statuses",
                "tags": [
                    "statuses"
                ],
                "parameters": [
                    {
                        "type": "string",
                        "name": "id",
                        "in": "path",
                        "required": true
                    },
                    {
                        "name": "order",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "type": "object"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "200"
                    },
                    "400": {
                        "description": "400"
                    }
                }
            }
        },
        "/api/v1/workflows/{id}/transitions": {
            "post": {
                "produces": [
                    "application/json"
                ],
                "summary": "Add a transition",
                "tags": [
                    "transitions"
                ],
                "parameters": [
                    {
                        "type": "string",
                        "name": "id",
                        "in": "path",
                        "required": true
                    },
                    {
                        "name": "transition",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "type": "object"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "201"
                    },
                    "400": {
                        "description": "400"
                    },
                    "423": {
                        "description": "423"
                    }
                }
            }
        },
        "/api/v1/workflows/{id}/transitions/{tid}": {
            "delete": {
                "produces": [
                    "application/json"
                ],
                "summary": "Delete a transition",
                "tags": [
                    "transitions"
                ],
                "parameters": [
                    {
                        "type": "string",
                        "name": "id",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "name": "tid",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "200"
                    },
                    "404": {
                        "description": "404"
                    },
                    "423": {
                        "description": "423"
                    }
                }
            }
        },
        "/api/v1/workflows/{id}/statuses/{sid}/transitions": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "summary": "Transitions leaving a status",
                "tags": [
                    "transitions"
                ],
                "parameters": [
                    {
                        "type": "string",
                        "name": "id",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "name": "sid",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "200"
                    },
                    "404": {
                        "description": "404"
                    }
                }
            }
        },
        "/api/v1/workflows/{id}/transitions/{tid}/attempt": {
            "post": {
                "produces": [
                    "application/json"
                ],
                "summary": "Attempt a transition",
                "tags": [
                    "transitions"
                ],
                "parameters": [
                    {
                        "type": "string",
                        "name": "id",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "name": "tid",
                        "in": "path",
                        "required": true
                    },
                    {
                        "name": "attempt",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "type": "object"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "200"
                    },
                    "403": {
                        "description": "403"
                    },
                    "404": {
                        "description": "404"
                    },
                    "409": {
                        "description": "409"
                    }
                }
            }
        },
        "/api/v1/workflows/{id}/automations": {
            "post": {
                "produces": [
                    "application/json"
                ],
                "summary": "Auto-executing transitions the entity qualifies for",
                "tags": [
                    "transitions"
                ],
                "parameters": [
                    {
                        "type": "string",
                        "name": "id",
                        "in": "path",
                        "required": true
                    },
                    {
                        "name": "entity",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "type": "object"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "200"
                    },
                    "404": {
                        "description": "404"
                    }
                }
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "taskflow API",
	Description:      "Workflow state machine and task validation engine.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
