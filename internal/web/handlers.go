package web

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/eion/things/internal/metrics"
	"github.com/eion/things/internal/things"
)

// ThingsHandler serves the things resource in every representation
type ThingsHandler struct {
	service things.ThingManager
	metrics metrics.Recorder
	logger  *zap.Logger
}

// NewThingsHandler creates a handler; a nil recorder disables operation metrics
func NewThingsHandler(service things.ThingManager, recorder metrics.Recorder, logger *zap.Logger) *ThingsHandler {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &ThingsHandler{
		service: service,
		metrics: recorder,
		logger:  logger,
	}
}

// Index lists all things, or the things matching ?term= for autocomplete
func (h *ThingsHandler) Index(c *gin.Context) {
	req := &things.ListThingsRequest{Term: c.Query("term")}

	list, err := h.service.ListThings(c.Request.Context(), req)
	if err != nil {
		h.fail(c, "list", err)
		return
	}
	h.metrics.RecordOperation("list", "success")

	switch requestFormat(c) {
	case FormatJSON:
		c.JSON(http.StatusOK, envelopes(list))
	case FormatText:
		c.String(http.StatusOK, thingsText(list))
	default:
		c.HTML(http.StatusOK, "things/index", gin.H{
			"Title":  "Things",
			"Things": list,
			"Term":   req.Term,
		})
	}
}

// Show renders a single thing
func (h *ThingsHandler) Show(c *gin.Context) {
	id, err := thingID(c)
	if err != nil {
		h.fail(c, "read", err)
		return
	}

	thing, err := h.service.GetThing(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "read", err)
		return
	}
	h.metrics.RecordOperation("read", "success")

	if requestFormat(c) == FormatHTML {
		c.HTML(http.StatusOK, "things/show", gin.H{"Title": thing.Name, "Thing": thing})
		return
	}
	h.renderThing(c, http.StatusOK, thing)
}

// New renders the empty creation form
func (h *ThingsHandler) New(c *gin.Context) {
	c.HTML(http.StatusOK, "things/new", gin.H{"Title": "New Thing", "Thing": &things.Thing{}})
}

// Edit renders the edit form for an existing thing
func (h *ThingsHandler) Edit(c *gin.Context) {
	id, err := thingID(c)
	if err != nil {
		h.fail(c, "read", err)
		return
	}

	thing, err := h.service.GetThing(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "read", err)
		return
	}

	c.HTML(http.StatusOK, "things/edit", gin.H{"Title": "Editing " + thing.Name, "Thing": thing})
}

// Create persists a thing from the "thing" group of the request body
func (h *ThingsHandler) Create(c *gin.Context) {
	params, err := bindThingParams(c)
	if err != nil {
		h.fail(c, "create", err)
		return
	}

	thing, err := h.service.CreateThing(c.Request.Context(), params)
	if err != nil {
		if things.IsValidation(err) && requestFormat(c) == FormatHTML {
			h.metrics.RecordOperation("create", outcome(err))
			h.renderForm(c, "things/new", "New Thing", formThing(nil, params), err)
			return
		}
		h.fail(c, "create", err)
		return
	}
	h.metrics.RecordOperation("create", "success")

	h.logger.Info("Thing created", zap.Int64("thing_id", thing.ID))

	location := fmt.Sprintf("/things/%d", thing.ID)
	if requestFormat(c) == FormatHTML {
		c.Redirect(http.StatusSeeOther, location)
		return
	}
	c.Header("Location", location)
	h.renderThing(c, http.StatusCreated, thing)
}

// Update applies a partial change to an existing thing
func (h *ThingsHandler) Update(c *gin.Context) {
	id, err := thingID(c)
	if err != nil {
		h.fail(c, "update", err)
		return
	}

	params, err := bindThingParams(c)
	if err != nil {
		h.fail(c, "update", err)
		return
	}

	ctx := c.Request.Context()
	thing, err := h.service.UpdateThing(ctx, id, params)
	if err != nil {
		if things.IsValidation(err) && requestFormat(c) == FormatHTML {
			h.metrics.RecordOperation("update", outcome(err))
			current, getErr := h.service.GetThing(ctx, id)
			if getErr != nil {
				h.fail(c, "update", getErr)
				return
			}
			h.renderForm(c, "things/edit", "Editing "+current.Name, formThing(current, params), err)
			return
		}
		h.fail(c, "update", err)
		return
	}
	h.metrics.RecordOperation("update", "success")

	h.logger.Info("Thing updated", zap.Int64("thing_id", thing.ID))

	if requestFormat(c) == FormatHTML {
		c.Redirect(http.StatusSeeOther, fmt.Sprintf("/things/%d", thing.ID))
		return
	}
	h.renderThing(c, http.StatusOK, thing)
}

// Destroy deletes a thing and returns its last known representation
func (h *ThingsHandler) Destroy(c *gin.Context) {
	id, err := thingID(c)
	if err != nil {
		h.fail(c, "delete", err)
		return
	}

	thing, err := h.service.DeleteThing(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "delete", err)
		return
	}
	h.metrics.RecordOperation("delete", "success")

	h.logger.Info("Thing deleted", zap.Int64("thing_id", thing.ID))

	if requestFormat(c) == FormatHTML {
		c.Redirect(http.StatusSeeOther, "/things")
		return
	}
	h.renderThing(c, http.StatusOK, thing)
}

func (h *ThingsHandler) renderThing(c *gin.Context, status int, thing *things.Thing) {
	if requestFormat(c) == FormatText {
		c.String(status, thingText(thing))
		return
	}
	c.JSON(status, envelope(thing))
}

func (h *ThingsHandler) renderForm(c *gin.Context, name, title string, thing *things.Thing, err error) {
	var messages []string
	var te *things.ThingError
	if errors.As(err, &te) {
		messages = te.Fields.FullMessages()
	}
	c.HTML(http.StatusBadRequest, name, gin.H{
		"Title":  title,
		"Thing":  thing,
		"Errors": messages,
	})
}

// fail records the outcome and hands the error to ErrorHandler
func (h *ThingsHandler) fail(c *gin.Context, operation string, err error) {
	h.metrics.RecordOperation(operation, outcome(err))
	_ = c.Error(err)
}

func outcome(err error) string {
	switch {
	case things.IsNotFound(err):
		return "not_found"
	case things.IsValidation(err):
		return "invalid"
	case things.IsBadRequest(err):
		return "bad_request"
	default:
		return "error"
	}
}

// bindThingParams reads the "thing" group from a JSON body or thing[...] form fields.
// A nil result means the group was absent.
func bindThingParams(c *gin.Context) (*things.ThingParams, error) {
	if c.ContentType() == gin.MIMEJSON {
		var payload struct {
			Thing *things.ThingParams `json:"thing"`
		}
		if err := c.ShouldBindJSON(&payload); err != nil {
			return nil, things.NewBadRequestError("malformed JSON body: " + err.Error())
		}
		return payload.Thing, nil
	}

	form, ok := c.GetPostFormMap("thing")
	if !ok {
		return nil, nil
	}

	params := &things.ThingParams{}
	if name, ok := form["name"]; ok {
		params.Name = &name
	}
	if desc, ok := form["description"]; ok {
		params.Description = &desc
	}
	return params, nil
}
