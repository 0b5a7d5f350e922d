// Package docs holds the swagger document served at /docs.
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
        "/internal/basket/best-stores": {
            "post": {
                "description": "Ranks stores by missing items then total cost, optionally within radiusKm of lat/lng",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["basket"],
                "summary": "Rank stores for a basket",
                "parameters": [
                    {
                        "description": "Basket",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/handlers.OptimizeRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.OptimizeResponse"}},
                    "400": {"description": "Invalid request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "502": {"description": "Price source failure", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "503": {"description": "Optimizer unavailable", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "504": {"description": "Price source timeout", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/internal/basket/best-online-stores": {
            "post": {
                "description": "Same as best-stores restricted to the configured online store allow-list; location is ignored",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["basket"],
                "summary": "Rank online stores for a basket",
                "parameters": [
                    {
                        "description": "Basket",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/handlers.OptimizeRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.OptimizeResponse"}},
                    "400": {"description": "Invalid request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "502": {"description": "Price source failure", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "503": {"description": "Optimizer unavailable", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "504": {"description": "Price source timeout", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/internal/deals/nearby": {
            "get": {
                "description": "Promotional prices at stores within about 0.045 degrees of the caller",
                "produces": ["application/json"],
                "tags": ["deals"],
                "summary": "Nearby deals",
                "parameters": [
                    {"type": "number", "description": "Latitude", "name": "lat", "in": "query", "required": true},
                    {"type": "number", "description": "Longitude", "name": "lng", "in": "query", "required": true},
                    {"minimum": 1, "type": "integer", "description": "Maximum number of deals", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.NearbyDealsResponse"}},
                    "400": {"description": "Invalid request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "502": {"description": "Price source failure", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "503": {"description": "Optimizer unavailable", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/internal/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.HealthResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/handlers.HealthResponse"}}
                }
            }
        }
    },
    "definitions": {
        "handlers.BasketItem": {
            "type": "object",
            "properties": {
                "productId": {"type": "integer"},
                "qty": {"type": "integer", "minimum": 1}
            }
        },
        "handlers.OptimizeRequest": {
            "type": "object",
            "properties": {
                "items": {"type": "array", "items": {"$ref": "#/definitions/handlers.BasketItem"}},
                "topN": {"type": "integer", "minimum": 0},
                "lat": {"type": "number"},
                "lng": {"type": "number"},
                "radiusKm": {"type": "number"}
            }
        },
        "handlers.BreakdownLine": {
            "type": "object",
            "properties": {
                "productId": {"type": "integer"},
                "price": {"type": "number"},
                "qty": {"type": "integer"},
                "subtotal": {"type": "number"}
            }
        },
        "handlers.StoreCandidate": {
            "type": "object",
            "properties": {
                "storeId": {"type": "integer"},
                "storeName": {"type": "string"},
                "chainName": {"type": "string"},
                "city": {"type": "string"},
                "distanceKm": {"type": "number"},
                "total": {"type": "number"},
                "availableCount": {"type": "integer"},
                "missingCount": {"type": "integer"},
                "breakdown": {"type": "array", "items": {"$ref": "#/definitions/handlers.BreakdownLine"}}
            }
        },
        "handlers.OptimizeResponse": {
            "type": "object",
            "properties": {
                "bestStoreCandidates": {"type": "array", "items": {"$ref": "#/definitions/handlers.StoreCandidate"}},
                "totalStoresSearched": {"type": "integer"}
            }
        },
        "handlers.Deal": {
            "type": "object",
            "properties": {
                "storeId": {"type": "integer"},
                "storeName": {"type": "string"},
                "chainName": {"type": "string"},
                "city": {"type": "string"},
                "productId": {"type": "integer"},
                "productName": {"type": "string"},
                "price": {"type": "number"}
            }
        },
        "handlers.NearbyDealsResponse": {
            "type": "object",
            "properties": {
                "deals": {"type": "array", "items": {"$ref": "#/definitions/handlers.Deal"}},
                "total": {"type": "integer"}
            }
        },
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "field": {"type": "string"},
                "index": {"type": "integer"}
            }
        },
        "handlers.HealthResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "database": {"type": "string"},
                "circuitBreaker": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "InternalAPIKey": {"type": "apiKey", "name": "X-Internal-API-Key", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Basket Service API",
	Description:      "Internal API for basket-to-store optimization and nearby deals.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
