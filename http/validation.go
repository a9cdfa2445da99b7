package http

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/xeipuuv/gojsonschema"
)

const confirmSchema = `{
	"type": "object",
	"properties": {
		"amount": {
			"type": "string",
			"pattern": "^[0-9]*\\.?[0-9]+$"
		}
	},
	"required": ["amount"],
	"additionalProperties": false
}`

const validateKeySchema = `{
	"type": "object",
	"properties": {
		"key": {
			"type": "string"
		}
	},
	"required": ["key"],
	"additionalProperties": false
}`

// decodeBody validates the request body against a JSON schema and
// returns it decoded. Schema failures come back as 400s carrying the
// first validation message.
func decodeBody(c echo.Context, schema string) (map[string]interface{}, error) {
	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "failed to read request body")
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewBytesLoader(raw),
	)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "request body is not valid JSON")
	}
	if !result.Valid() {
		return nil, echo.NewHTTPError(http.StatusBadRequest, result.Errors()[0].String())
	}

	var body map[string]interface{}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "request body is not valid JSON")
	}
	return body, nil
}
