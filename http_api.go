package defects

import (
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// MaxAttachmentSize caps a single uploaded file
const MaxAttachmentSize = 20 << 20

// APIController serves the /api resources. Every route runs behind the Guard.
type APIController struct {
	Logger       Logger
	Repo         RepositoryManager
	Policy       Policy
	CreateDefect *CreateDefectHandler
	UpdateDefect *UpdateDefectHandler
	Storage      FileStorage
	Sanitizer    Sanitizer
}

type APIControllerOption func(*APIController)

func WithAPIControllerLogger(logger Logger) APIControllerOption {
	return func(a *APIController) {
		a.Logger = normalizeLogger(logger)
	}
}

func WithAPISanitizer(s Sanitizer) APIControllerOption {
	return func(a *APIController) {
		if s != nil {
			a.Sanitizer = s
		}
	}
}

func NewAPIController(repo RepositoryManager, storage FileStorage, opts ...APIControllerOption) *APIController {
	a := &APIController{
		Logger:       defLogger{},
		Repo:         repo,
		CreateDefect: NewCreateDefectHandler(repo),
		UpdateDefect: NewUpdateDefectHandler(repo),
		Storage:      storage,
		Sanitizer:    NewTextSanitizer(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}

	return a
}

// RegisterAPIRoutes mounts the resource endpoints under /api
func RegisterAPIRoutes[T any](app router.Router[T], guard *Guard, controller *APIController) {
	api := app.Group("/api")
	api.Use(guard.Middleware())

	api.Get("/projects", controller.ListProjects)
	api.Get("/projects/:id", controller.GetProject)
	api.Post("/projects", controller.CreateProject)
	api.Patch("/projects/:id", controller.UpdateProject)

	api.Get("/project-stages", controller.ListStages)
	api.Post("/project-stages", controller.CreateStage)
	api.Patch("/project-stages/:id", controller.UpdateStage)

	api.Get("/defects", controller.ListDefects)
	api.Get("/defects/:id", controller.GetDefect)
	api.Post("/defects", controller.CreateDefectPost)
	api.Patch("/defects/:id", controller.UpdateDefectPatch)
	api.Get("/defects/:id/history", controller.DefectHistory)
	api.Get("/defects/:id/comments", controller.ListComments)
	api.Get("/defects/:id/attachments", controller.ListAttachments)
	api.Post("/defects/:id/attachments", controller.UploadAttachment)
	api.Get("/defects/:id/attachments/:attachmentID", controller.DownloadAttachment)

	api.Post("/comments", controller.CreateComment)

	api.Get("/users", controller.ListUsers)
	api.Get("/reports/defects-statistics", controller.Statistics)
}

func (a *APIController) ListProjects(c router.Context) error {
	if _, err := a.authorize(c, ActionViewProjects); err != nil {
		return err
	}

	records, err := a.Repo.Projects().List(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, records)
}

func (a *APIController) GetProject(c router.Context) error {
	if _, err := a.authorize(c, ActionViewProjects); err != nil {
		return err
	}

	id, err := paramID(c)
	if err != nil {
		return err
	}

	record, err := a.Repo.Projects().Get(c.Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, record)
}

func (a *APIController) CreateProject(c router.Context) error {
	user, err := a.authorize(c, ActionManageProjects)
	if err != nil {
		return err
	}

	payload := new(ProjectPayload)
	if err := a.parse(c, payload); err != nil {
		return err
	}

	if err := payload.Validate(); err != nil {
		return NewValidationError(err.Error())
	}

	patch, err := payload.Patch()
	if err != nil {
		return err
	}

	record := &Project{CreatedBy: user.ID}
	patch.Apply(record)

	created, err := a.Repo.Projects().Create(c.Context(), record)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, created)
}

func (a *APIController) UpdateProject(c router.Context) error {
	if _, err := a.authorize(c, ActionManageProjects); err != nil {
		return err
	}

	id, err := paramID(c)
	if err != nil {
		return err
	}

	payload := new(ProjectPayload)
	if err := a.parse(c, payload); err != nil {
		return err
	}

	patch, err := payload.Patch()
	if err != nil {
		return err
	}

	record, err := a.Repo.Projects().Update(c.Context(), id, patch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, record)
}

func (a *APIController) ListStages(c router.Context) error {
	if _, err := a.authorize(c, ActionViewProjects); err != nil {
		return err
	}

	projectID, err := queryID(c, "project_id")
	if err != nil {
		return err
	}

	records, err := a.Repo.Stages().List(c.Context(), projectID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, records)
}

func (a *APIController) CreateStage(c router.Context) error {
	if _, err := a.authorize(c, ActionManageProjects); err != nil {
		return err
	}

	payload := new(StagePayload)
	if err := a.parse(c, payload); err != nil {
		return err
	}

	if err := payload.Validate(); err != nil {
		return NewValidationError(err.Error())
	}

	projectID, err := parseID("project_id", payload.ProjectID)
	if err != nil {
		return err
	}

	if _, err := a.Repo.Projects().Get(c.Context(), projectID); err != nil {
		return err
	}

	patch, err := payload.Patch()
	if err != nil {
		return err
	}

	record := &ProjectStage{ProjectID: projectID}
	patch.Apply(record)

	created, err := a.Repo.Stages().Create(c.Context(), record)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, created)
}

func (a *APIController) UpdateStage(c router.Context) error {
	if _, err := a.authorize(c, ActionManageProjects); err != nil {
		return err
	}

	id, err := paramID(c)
	if err != nil {
		return err
	}

	payload := new(StagePayload)
	if err := a.parse(c, payload); err != nil {
		return err
	}

	if payload.ProjectID != "" {
		return NewValidationError("project_id can not be changed")
	}

	patch, err := payload.Patch()
	if err != nil {
		return err
	}

	record, err := a.Repo.Stages().Update(c.Context(), id, patch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, record)
}

// ListDefects filters by project_id and status. Engineers only see the
// defects they reported or are assigned to.
func (a *APIController) ListDefects(c router.Context) error {
	user, err := a.authorize(c, ActionViewDefects)
	if err != nil {
		return err
	}

	filter := DefectFilter{ParticipantID: a.Policy.DefectScope(user)}

	if filter.ProjectID, err = queryID(c, "project_id"); err != nil {
		return err
	}

	if raw := strings.TrimSpace(c.Query("status", "")); raw != "" {
		status, err := ParseStatus(raw)
		if err != nil {
			return err
		}
		filter.Status = &status
	}

	records, err := a.Repo.Defects().List(c.Context(), filter)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, records)
}

func (a *APIController) GetDefect(c router.Context) error {
	_, defect, err := a.defect(c, ActionViewDefects)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, defect)
}

func (a *APIController) CreateDefectPost(c router.Context) error {
	user, err := a.authorize(c, ActionCreateDefect)
	if err != nil {
		return err
	}

	payload := new(DefectCreatePayload)
	if err := a.parse(c, payload); err != nil {
		return err
	}

	if err := payload.Validate(); err != nil {
		return NewValidationError(err.Error())
	}

	record, err := payload.Defect()
	if err != nil {
		return err
	}

	var created *Defect
	err = a.CreateDefect.Execute(c.Context(), CreateDefectMessage{
		Actor:  user,
		Defect: record,
		OnResponse: func(d *Defect) {
			created = d
		},
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, created)
}

// UpdateDefectPatch applies a partial update, a null value clears the
// nullable fields
func (a *APIController) UpdateDefectPatch(c router.Context) error {
	user, ok := CurrentUser(c)
	if !ok {
		return ErrUnauthenticated
	}

	id, err := paramID(c)
	if err != nil {
		return err
	}

	patch, err := ParseDefectPatch(c.Body())
	if err != nil {
		return err
	}

	var updated *Defect
	err = a.UpdateDefect.Execute(c.Context(), UpdateDefectMessage{
		DefectID: id,
		Actor:    user,
		Patch:    patch,
		OnResponse: func(d *Defect, _ []FieldChange) {
			updated = d
		},
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, updated)
}

func (a *APIController) DefectHistory(c router.Context) error {
	_, defect, err := a.defect(c, ActionViewDefects)
	if err != nil {
		return err
	}

	records, err := a.Repo.History().ListByDefect(c.Context(), defect.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, records)
}

func (a *APIController) CreateComment(c router.Context) error {
	user, err := a.authorize(c, ActionCommentDefect)
	if err != nil {
		return err
	}

	payload := new(CommentPayload)
	if err := a.parse(c, payload); err != nil {
		return err
	}

	defectID, err := parseID("defect_id", payload.DefectID)
	if err != nil {
		return err
	}

	defect, err := a.Repo.Defects().Get(c.Context(), defectID)
	if err != nil {
		return err
	}

	if err := a.Policy.AuthorizeDefect(user, ActionCommentDefect, defect); err != nil {
		return err
	}

	body := sanitizeText(a.Sanitizer, payload.Text())
	if body == "" {
		return NewValidationError("comment body is required")
	}

	created, err := a.Repo.Comments().Create(c.Context(), &DefectComment{
		DefectID: defect.ID,
		AuthorID: user.ID,
		Body:     body,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, created)
}

func (a *APIController) ListComments(c router.Context) error {
	_, defect, err := a.defect(c, ActionViewDefects)
	if err != nil {
		return err
	}

	records, err := a.Repo.Comments().ListByDefect(c.Context(), defect.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, records)
}

// UploadAttachment stores the multipart "file" field. The stored file is
// removed again when the row can not be written.
func (a *APIController) UploadAttachment(c router.Context) error {
	user, defect, err := a.defect(c, ActionAttachDefect)
	if err != nil {
		return err
	}

	if a.Storage == nil {
		return errStorageMissing()
	}

	upload, err := readUpload(c, "file", MaxAttachmentSize)
	if err != nil {
		return err
	}

	path, err := a.Storage.Save(c.Context(), defect.ID.String(), upload.Filename, upload.Data)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store attachment")
	}

	created, err := a.Repo.Attachments().Create(c.Context(), &DefectAttachment{
		DefectID:    defect.ID,
		Filename:    filepath.Base(upload.Filename),
		StoragePath: path,
		MimeType:    detectMimeType(upload.Filename, upload.ContentType),
		Size:        int64(len(upload.Data)),
		UploadedBy:  user.ID,
	})
	if err != nil {
		if derr := a.Storage.Delete(c.Context(), path); derr != nil {
			a.Logger.Error("remove orphaned attachment", "path", path, "error", derr)
		}
		return err
	}

	a.Logger.Debug("attachment stored", "defect_id", defect.ID, "path", path)

	return c.JSON(http.StatusCreated, created)
}

// DownloadAttachment streams a stored file back with its recorded mime type
func (a *APIController) DownloadAttachment(c router.Context) error {
	_, defect, err := a.defect(c, ActionViewDefects)
	if err != nil {
		return err
	}

	if a.Storage == nil {
		return errStorageMissing()
	}

	id, err := parseID("attachmentID", c.Param("attachmentID", ""))
	if err != nil {
		return err
	}

	record, err := a.Repo.Attachments().Get(c.Context(), id)
	if err != nil {
		return err
	}

	if record.DefectID != defect.ID {
		return NewNotFoundError("attachment")
	}

	data, err := a.Storage.Open(c.Context(), record.StoragePath)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read attachment")
	}

	c.SetHeader("Content-Type", record.MimeType)
	c.SetHeader("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": record.Filename,
	}))
	return c.Status(http.StatusOK).Send(data)
}

func (a *APIController) ListAttachments(c router.Context) error {
	_, defect, err := a.defect(c, ActionViewDefects)
	if err != nil {
		return err
	}

	records, err := a.Repo.Attachments().ListByDefect(c.Context(), defect.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, records)
}

func (a *APIController) ListUsers(c router.Context) error {
	if _, err := a.authorize(c, ActionListUsers); err != nil {
		return err
	}

	records, err := a.Repo.Users().List(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, records)
}

func (a *APIController) Statistics(c router.Context) error {
	if _, err := a.authorize(c, ActionViewStatistics); err != nil {
		return err
	}

	projectID, err := queryID(c, "project_id")
	if err != nil {
		return err
	}

	stats, err := DefectStatisticsFor(c.Context(), a.Repo.Defects(), DefectFilter{ProjectID: projectID})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

func (a *APIController) authorize(c router.Context, action Action) (*User, error) {
	user, ok := CurrentUser(c)
	if !ok {
		return nil, ErrUnauthenticated
	}
	if err := a.Policy.Authorize(user, action); err != nil {
		return nil, err
	}
	return user, nil
}

// defect loads the :id defect and checks the ownership rules for action
func (a *APIController) defect(c router.Context, action Action) (*User, *Defect, error) {
	user, err := a.authorize(c, action)
	if err != nil {
		return nil, nil, err
	}

	id, err := paramID(c)
	if err != nil {
		return nil, nil, err
	}

	defect, err := a.Repo.Defects().Get(c.Context(), id)
	if err != nil {
		return nil, nil, err
	}

	if err := a.Policy.AuthorizeDefect(user, action, defect); err != nil {
		return nil, nil, err
	}

	return user, defect, nil
}

func (a *APIController) parse(c router.Context, out any) error {
	if err := c.Bind(out); err != nil {
		a.Logger.Debug("parse payload", "path", c.Path(), "error", err)
		return NewValidationError("invalid request body")
	}
	return nil
}

func paramID(c router.Context) (uuid.UUID, error) {
	return parseID("id", c.Param("id", ""))
}

func queryID(c router.Context, key string) (*uuid.UUID, error) {
	raw := strings.TrimSpace(c.Query(key, ""))
	if raw == "" {
		return nil, nil
	}
	id, err := parseID(key, raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func detectMimeType(filename, declared string) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); t != "" {
		return t
	}
	if declared != "" {
		return declared
	}
	return "application/octet-stream"
}

func errStorageMissing() error {
	return goerrors.New("attachment storage is not configured", goerrors.CategoryInternal).
		WithCode(goerrors.CodeInternal)
}
