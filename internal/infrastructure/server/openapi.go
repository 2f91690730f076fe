package server

import (
	"net/http"
	"strings"

	"github.com/amirfounder/http-server/pkg/service"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gin-gonic/gin"
	"github.com/iancoleman/strcase"
)

const errorSchemaRef = "#/components/schemas/Error"

// OpenAPI describes the registered services as an OpenAPI 3 document.
// Request and response payloads are free-form JSON; only the error body has a fixed shape.
func (s *HTTPServer) OpenAPI() *openapi3.T {
	paths := openapi3.Paths{}

	for _, route := range s.registry.Routes() {
		p := &openapi3.PathItem{}
		paths[route] = p

		for _, method := range s.registry.Methods(route) {
			svc, _ := s.registry.Lookup(route, method)

			op := openapi3.NewOperation()
			op.OperationID = operationID(route, method)
			op.Summary = describe(svc)
			if hasBody(method) {
				op.RequestBody = &openapi3.RequestBodyRef{
					Value: openapi3.NewRequestBody().
						WithJSONSchemaRef(openapi3.NewSchemaRef("", openapi3.NewObjectSchema())),
				}
			}

			rsp := openapi3.NewResponse().WithDescription("success")
			rsp.Content = openapi3.NewContentWithJSONSchemaRef(openapi3.NewSchemaRef("", openapi3.NewSchema()))
			op.AddResponse(http.StatusOK, rsp)
			op.AddResponse(http.StatusBadRequest, errorResponse("malformed JSON body"))
			op.AddResponse(http.StatusMethodNotAllowed, errorResponse("method not registered for route"))
			op.AddResponse(http.StatusInternalServerError, errorResponse("service failure"))
			op.AddResponse(0, errorResponse("service-specific error"))

			p.SetOperation(method.String(), op)
		}
	}

	comp := openapi3.NewComponents()
	comp.Schemas = openapi3.Schemas{
		"Error": openapi3.NewSchemaRef("", openapi3.NewObjectSchema().
			WithProperty("statusCode", openapi3.NewIntegerSchema()).
			WithProperty("errorLabel", openapi3.NewStringSchema()).
			WithProperty("message", openapi3.NewStringSchema()).
			WithProperty("timestamp", openapi3.NewDateTimeSchema())),
	}

	root := &openapi3.T{}
	root.OpenAPI = "3.0.3"
	root.Info = &openapi3.Info{
		Title:   s.config.Server.Name,
		Version: s.config.Server.Version,
	}
	root.Components = comp
	root.Paths = paths

	return root
}

func (s *HTTPServer) openAPIHandler(c *gin.Context) {
	c.JSON(http.StatusOK, s.OpenAPI())
}

func errorResponse(description string) *openapi3.Response {
	rsp := openapi3.NewResponse().WithDescription(description)
	rsp.Content = openapi3.NewContentWithJSONSchemaRef(openapi3.NewSchemaRef(errorSchemaRef, nil))
	return rsp
}

// operationID turns "POST /users/list" into "postUsersList"
func operationID(route string, method service.Method) string {
	words := strings.ToLower(method.String()) + " " + strings.ReplaceAll(route, "/", " ")
	return strcase.ToLowerCamel(strings.TrimSpace(words))
}

func hasBody(method service.Method) bool {
	switch method {
	case service.MethodPost, service.MethodPut, service.MethodPatch:
		return true
	}
	return false
}
