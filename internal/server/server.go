package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"signalis/internal/domain"
	"signalis/internal/engine"
	"signalis/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Logger   *zerolog.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_found"`
	Message string         `json:"message" example:"not found"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope returned on every failure.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Signalis API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors should be 400 bad_request
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	if cfg.Logger != nil {
		router.Use(requestLogger(cfg.Logger))
	}
	hcfg := huma.DefaultConfig("Signalis API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerCollectivities(group, cfg.Engine)
	registerReports(group, cfg.Engine)
	registerTransmissions(group, cfg.Engine)
	registerPackages(group, cfg.Engine)
	registerTerritory(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	if errors.Is(err, engine.ErrTransmissionCompleted) {
		return newAPIError(http.StatusConflict, "transmission_completed", err.Error(), nil)
	}
	if errors.Is(err, engine.ErrReportDecided) {
		return newAPIError(http.StatusConflict, "report_decided", err.Error(), nil)
	}
	if errors.Is(err, repo.ErrDuplicateReference) {
		return newAPIError(http.StatusConflict, "reference_conflict", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "invalid") || strings.Contains(lowered, "missing") || strings.Contains(lowered, "required"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

// ActorHeader carries the acting user on mutating requests. Authentication is
// out of scope; the header is trusted as-is and recorded in the audit log.
type ActorHeader struct {
	XActorID string `header:"X-Actor-Id"`
}

func (a ActorHeader) actor() string {
	if a.XActorID == "" {
		return "api"
	}
	return a.XActorID
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerCollectivities(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-collectivity",
		Method:        http.MethodPost,
		Path:          "/collectivities",
		Summary:       "Create collectivity",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		ActorHeader
		Body CreateCollectivityRequest `json:"body"`
	}) (*struct {
		Body domain.Collectivity `json:"body"`
	}, error) {
		if input.Body.Name == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "name is required", nil)
		}
		c, err := e.CreateCollectivity(ctx, input.Body.ID, input.Body.Name, input.Body.Siren, input.actor())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Collectivity `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-collectivities",
		Method:      http.MethodGet,
		Path:        "/collectivities",
		Summary:     "List collectivities",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Collectivity `json:"body"`
	}, error) {
		items, err := e.Repo.ListCollectivities(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Collectivity `json:"body"`
		}{Body: items}, nil
	})
}

func registerReports(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-report",
		Method:        http.MethodPost,
		Path:          "/reports",
		Summary:       "File a report",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		ActorHeader
		Body CreateReportRequest `json:"body"`
	}) (*struct {
		Body domain.Report `json:"body"`
	}, error) {
		rp, err := e.CreateReport(ctx, engine.ReportCreateOptions{
			ID:             input.Body.ID,
			CollectivityID: input.Body.CollectivityID,
			PublisherID:    input.Body.PublisherID,
			CommuneCode:    input.Body.CommuneCode,
			Anomaly:        input.Body.Anomaly,
			Completed:      input.Body.Completed,
			ActorID:        input.actor(),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Report `json:"body"`
		}{Body: rp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-reports",
		Method:      http.MethodGet,
		Path:        "/reports",
		Summary:     "List reports",
	}, func(ctx context.Context, input *struct {
		CollectivityID string `query:"collectivity_id"`
		TransmissionID string `query:"transmission_id"`
		PackageID      string `query:"package_id"`
		Limit          int    `query:"limit"`
	}) (*struct {
		Body []domain.Report `json:"body"`
	}, error) {
		items, err := e.Repo.ListReports(ctx, repo.ReportFilters{
			CollectivityID: input.CollectivityID,
			TransmissionID: input.TransmissionID,
			PackageID:      input.PackageID,
			Limit:          input.Limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Report `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-report",
		Method:      http.MethodGet,
		Path:        "/reports/{report_id}",
		Summary:     "Get report",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ReportID string `path:"report_id"`
	}) (*struct {
		Body domain.Report `json:"body"`
	}, error) {
		rp, err := e.Repo.GetReport(ctx, input.ReportID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Report `json:"body"`
		}{Body: rp}, nil
	})

	type reportAction struct {
		ActorHeader
		ReportID string `path:"report_id"`
	}
	reportOp := func(id, pathSuffix, summary string, fn func(context.Context, string, string) (domain.Report, error)) {
		huma.Register(api, huma.Operation{
			OperationID: id,
			Method:      http.MethodPost,
			Path:        "/reports/{report_id}/" + pathSuffix,
			Summary:     summary,
			Errors:      []int{http.StatusNotFound, http.StatusConflict},
		}, func(ctx context.Context, input *reportAction) (*struct {
			Body domain.Report `json:"body"`
		}, error) {
			rp, err := fn(ctx, input.ReportID, input.actor())
			if err != nil {
				return nil, handleError(err)
			}
			return &struct {
				Body domain.Report `json:"body"`
			}{Body: rp}, nil
		})
	}
	reportOp("complete-report", "complete", "Mark report as completed", e.CompleteReport)
	reportOp("approve-report", "approve", "Approve report", e.ApproveReport)
	reportOp("reject-report", "reject", "Reject report", e.RejectReport)
	reportOp("debate-report", "debate", "Put report under debate", e.DebateReport)
}

func registerTransmissions(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-transmission",
		Method:        http.MethodPost,
		Path:          "/transmissions",
		Summary:       "Open a transmission",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		ActorHeader
		Body CreateTransmissionRequest `json:"body"`
	}) (*struct {
		Body domain.Transmission `json:"body"`
	}, error) {
		t, err := e.CreateTransmission(ctx, input.Body.CollectivityID, input.Body.PublisherID, input.actor(), input.Body.Sandbox)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Transmission `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-transmissions",
		Method:      http.MethodGet,
		Path:        "/transmissions",
		Summary:     "List transmissions",
	}, func(ctx context.Context, input *struct {
		CollectivityID string `query:"collectivity_id"`
	}) (*struct {
		Body []domain.Transmission `json:"body"`
	}, error) {
		items, err := e.Repo.ListTransmissions(ctx, input.CollectivityID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Transmission `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-transmission",
		Method:      http.MethodGet,
		Path:        "/transmissions/{transmission_id}",
		Summary:     "Get transmission",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TransmissionID string `path:"transmission_id"`
	}) (*struct {
		Body domain.Transmission `json:"body"`
	}, error) {
		t, err := e.Repo.GetTransmission(ctx, input.TransmissionID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Transmission `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "add-transmission-reports",
		Method:      http.MethodPost,
		Path:        "/transmissions/{transmission_id}/reports",
		Summary:     "Add reports to the pool",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ActorHeader
		TransmissionID string            `path:"transmission_id"`
		Body           PoolChangeRequest `json:"body"`
	}) (*struct {
		Body engine.PoolChangeResult `json:"body"`
	}, error) {
		res, err := e.AddToTransmission(ctx, input.TransmissionID, input.Body.ReportIDs, input.actor())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.PoolChangeResult `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "remove-transmission-reports",
		Method:      http.MethodDelete,
		Path:        "/transmissions/{transmission_id}/reports",
		Summary:     "Remove reports from the pool",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ActorHeader
		TransmissionID string            `path:"transmission_id"`
		Body           PoolChangeRequest `json:"body"`
	}) (*struct {
		Body engine.PoolChangeResult `json:"body"`
	}, error) {
		res, err := e.RemoveFromTransmission(ctx, input.TransmissionID, input.Body.ReportIDs, input.actor())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.PoolChangeResult `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "complete-transmission",
		Method:      http.MethodPost,
		Path:        "/transmissions/{transmission_id}/complete",
		Summary:     "Finalize transmission into packages",
		Errors:      []int{http.StatusNotFound, http.StatusUnprocessableEntity, http.StatusConflict, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		ActorHeader
		TransmissionID string `path:"transmission_id"`
	}) (*struct {
		Body engine.FinalizeResult `json:"body"`
	}, error) {
		res, err := e.CompleteTransmission(ctx, input.TransmissionID, input.actor())
		if err != nil {
			return nil, handleError(err)
		}
		if !res.OK {
			return nil, newAPIError(http.StatusUnprocessableEntity, "validation_failed",
				strings.Join(res.Errors, "; "), map[string]any{"errors": res.Errors})
		}
		return &struct {
			Body engine.FinalizeResult `json:"body"`
		}{Body: res}, nil
	})
}

func registerPackages(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-packages",
		Method:      http.MethodGet,
		Path:        "/packages",
		Summary:     "List packages",
	}, func(ctx context.Context, input *struct {
		CollectivityID string `query:"collectivity_id"`
		TransmissionID string `query:"transmission_id"`
		AuthorityID    string `query:"authority_id"`
	}) (*struct {
		Body []domain.Package `json:"body"`
	}, error) {
		items, err := e.Repo.ListPackages(ctx, repo.PackageFilters{
			CollectivityID: input.CollectivityID,
			TransmissionID: input.TransmissionID,
			AuthorityID:    input.AuthorityID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Package `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-package",
		Method:      http.MethodGet,
		Path:        "/packages/{package_id}",
		Summary:     "Get package",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		PackageID string `path:"package_id"`
	}) (*struct {
		Body domain.Package `json:"body"`
	}, error) {
		p, err := e.Repo.GetPackage(ctx, input.PackageID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Package `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-package-reports",
		Method:      http.MethodGet,
		Path:        "/packages/{package_id}/reports",
		Summary:     "List reports in a package",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		PackageID string `path:"package_id"`
	}) (*struct {
		Body []domain.Report `json:"body"`
	}, error) {
		if _, err := e.Repo.GetPackage(ctx, input.PackageID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListReports(ctx, repo.ReportFilters{PackageID: input.PackageID})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Report `json:"body"`
		}{Body: items}, nil
	})

	type packageAction struct {
		ActorHeader
		PackageID string `path:"package_id"`
	}
	packageOp := func(id, pathSuffix, summary string, fn func(context.Context, string, string) (domain.Package, error)) {
		huma.Register(api, huma.Operation{
			OperationID: id,
			Method:      http.MethodPost,
			Path:        "/packages/{package_id}/" + pathSuffix,
			Summary:     summary,
			Errors:      []int{http.StatusNotFound},
		}, func(ctx context.Context, input *packageAction) (*struct {
			Body domain.Package `json:"body"`
		}, error) {
			p, err := fn(ctx, input.PackageID, input.actor())
			if err != nil {
				return nil, handleError(err)
			}
			return &struct {
				Body domain.Package `json:"body"`
			}{Body: p}, nil
		})
	}
	packageOp("assign-package", "assign", "Assign package to its authority", e.AssignPackage)
	packageOp("return-package", "return", "Return package to the collectivity", e.ReturnPackage)
}

func registerTerritory(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-authority",
		Method:        http.MethodPost,
		Path:          "/authorities",
		Summary:       "Create authority",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body CreateAuthorityRequest `json:"body"`
	}) (*struct {
		Body domain.Authority `json:"body"`
	}, error) {
		if input.Body.Name == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "name is required", nil)
		}
		a := domain.Authority{
			ID:         input.Body.ID,
			Name:       input.Body.Name,
			AutoAssign: input.Body.AutoAssign,
			Districts:  input.Body.Districts,
			CreatedAt:  time.Now().UTC().Format(time.RFC3339),
		}
		if a.ID == "" {
			a.ID = uuid.New().String()
		}
		if err := e.Repo.InsertAuthority(ctx, a); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Authority `json:"body"`
		}{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-authorities",
		Method:      http.MethodGet,
		Path:        "/authorities",
		Summary:     "List authorities with coverage",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Authority `json:"body"`
	}, error) {
		items, err := e.Repo.ListAuthoritiesWithCoverage(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Authority `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-office",
		Method:        http.MethodPost,
		Path:          "/authorities/{authority_id}/offices",
		Summary:       "Create office",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		AuthorityID string              `path:"authority_id"`
		Body        CreateOfficeRequest `json:"body"`
	}) (*struct {
		Body domain.Office `json:"body"`
	}, error) {
		if input.Body.Name == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "name is required", nil)
		}
		if _, err := e.Repo.GetAuthority(ctx, input.AuthorityID); err != nil {
			return nil, handleError(err)
		}
		o := domain.Office{
			ID:          input.Body.ID,
			AuthorityID: input.AuthorityID,
			Name:        input.Body.Name,
			Communes:    input.Body.Communes,
			CreatedAt:   time.Now().UTC().Format(time.RFC3339),
		}
		if o.ID == "" {
			o.ID = uuid.New().String()
		}
		if err := e.Repo.InsertOffice(ctx, o); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Office `json:"body"`
		}{Body: o}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "upsert-commune",
		Method:      http.MethodPut,
		Path:        "/communes/{code_insee}",
		Summary:     "Upsert commune lookup row",
		Errors:      []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		CodeINSEE string               `path:"code_insee"`
		Body      UpsertCommuneRequest `json:"body"`
	}) (*struct {
		Body domain.Commune `json:"body"`
	}, error) {
		if input.Body.DepartementCode == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "departement_code is required", nil)
		}
		c := domain.Commune{
			CodeINSEE:       input.CodeINSEE,
			Name:            input.Body.Name,
			DepartementCode: input.Body.DepartementCode,
			EPCICode:        input.Body.EPCICode,
		}
		if err := e.Repo.InsertCommune(ctx, c); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Commune `json:"body"`
		}{Body: c}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List audit events",
	}, func(ctx context.Context, input *struct {
		Limit      int    `query:"limit"`
		EntityKind string `query:"entity_kind"`
		EntityID   string `query:"entity_id"`
	}) (*struct {
		Body []domain.Event `json:"body"`
	}, error) {
		limit := input.Limit
		if limit <= 0 {
			limit = 50
		}
		items, err := e.Repo.LatestEvents(ctx, limit, input.EntityKind, input.EntityID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Event `json:"body"`
		}{Body: items}, nil
	})
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Signalis API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
  </body>
</html>`, specURL)
}
