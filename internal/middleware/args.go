package middleware

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/pawbyte/accounts/internal/apperror"
)

// bodyParamsKey caches the parsed request body in the Echo context so the
// auth middleware and the handler can both bind arguments without fighting
// over the body reader.
const bodyParamsKey = "body_params"

// Field describes one request argument: its name and whether its absence
// fails the request. One typed table per endpoint replaces ad-hoc
// shape-checking of field lists.
type Field struct {
	Name     string
	Required bool
}

// Required declares a mandatory argument.
func Required(name string) Field {
	return Field{Name: name, Required: true}
}

// Optional declares an argument that may be absent.
func Optional(name string) Field {
	return Field{Name: name}
}

// BindArgs extracts the declared arguments from the request, looking in
// the body first, then the query string, then the path parameters. Missing
// required arguments are reported together as a validation error keyed
// {field: "Required"}.
func BindArgs(c echo.Context, fields ...Field) (map[string]string, error) {
	body := bodyParams(c)

	args := make(map[string]string, len(fields))
	missing := map[string]string{}

	for _, f := range fields {
		if v, ok := body[f.Name]; ok {
			args[f.Name] = v
			continue
		}
		if v := c.QueryParam(f.Name); v != "" {
			args[f.Name] = v
			continue
		}
		if v := c.Param(f.Name); v != "" {
			args[f.Name] = v
			continue
		}
		if f.Required {
			missing[f.Name] = "Required"
		}
	}

	if len(missing) > 0 {
		return nil, apperror.NewValidation(missing)
	}
	return args, nil
}

// bodyParams parses the request body once per request and caches the
// result. JSON bodies take scalar fields; form bodies take the first value
// per key. A missing or unparseable body reads as empty rather than
// failing, since arguments may legitimately arrive elsewhere.
func bodyParams(c echo.Context) map[string]string {
	if cached, ok := c.Get(bodyParamsKey).(map[string]string); ok {
		return cached
	}

	params := map[string]string{}
	req := c.Request()

	ctype := req.Header.Get(echo.HeaderContentType)
	switch {
	case strings.HasPrefix(ctype, echo.MIMEApplicationJSON):
		var raw map[string]any
		if err := json.NewDecoder(req.Body).Decode(&raw); err == nil {
			for k, v := range raw {
				switch t := v.(type) {
				case string:
					params[k] = t
				case float64:
					params[k] = strconv.FormatFloat(t, 'f', -1, 64)
				case bool:
					params[k] = strconv.FormatBool(t)
				}
			}
		}
	case strings.HasPrefix(ctype, echo.MIMEApplicationForm),
		strings.HasPrefix(ctype, echo.MIMEMultipartForm):
		if form, err := c.FormParams(); err == nil {
			for k, v := range form {
				if len(v) > 0 {
					params[k] = v[0]
				}
			}
		}
	}

	c.Set(bodyParamsKey, params)
	return params
}
