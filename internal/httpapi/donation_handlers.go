package httpapi

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"merosamaj.org/internal/audit"
	"merosamaj.org/internal/donation"
	"merosamaj.org/internal/obs"
)

const imageField = "image"

func (a *API) handleFoodDonations(w http.ResponseWriter, r *http.Request) {
	if a.intake == nil {
		writeError(w, r, http.StatusServiceUnavailable, "donations unavailable")
		return
	}
	switch r.Method {
	case http.MethodGet:
		a.listFoodDonations(w, r)
	case http.MethodPost:
		a.submitFoodDonation(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) listFoodDonations(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, r, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	items, err := a.intake.Available(r.Context(), limit)
	if err != nil {
		handleDonationError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// submitFoodDonation accepts multipart/form-data with an optional "image"
// file, or a JSON form without an image.
func (a *API) submitFoodDonation(w http.ResponseWriter, r *http.Request) {
	var (
		form donation.FoodForm
		img  *donation.Image
	)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json":
		if err := decodeJSON(w, r, &form); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
	case "multipart/form-data":
		// Form fields get a little headroom beyond the image limit.
		r.Body = http.MaxBytesReader(w, r.Body, a.maxUploadBytes+64<<10)
		if err := r.ParseMultipartForm(a.maxUploadBytes); err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				writeError(w, r, http.StatusRequestEntityTooLarge, "image is too large")
				return
			}
			writeError(w, r, http.StatusBadRequest, "invalid multipart form")
			return
		}
		defer r.MultipartForm.RemoveAll()
		form = donation.FoodForm{
			FoodDescription:    r.FormValue("foodDescription"),
			Quantity:           r.FormValue("quantity"),
			PickupLocation:     r.FormValue("pickupLocation"),
			PickupInstructions: r.FormValue("pickupInstructions"),
			ContactName:        r.FormValue("contactName"),
			ContactPhone:       r.FormValue("contactPhone"),
		}
		var ok bool
		if img, ok = a.readImage(w, r); !ok {
			return
		}
	default:
		writeError(w, r, http.StatusUnsupportedMediaType, "expected multipart/form-data or application/json")
		return
	}

	st := currentSession(r)
	listing, err := a.intake.SubmitFood(r.Context(), st.Identity, form, img)
	if err != nil {
		handleDonationError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "donation.food.listed", map[string]any{
		"donation_id": listing.Donation.ID,
		"with_image":  listing.Donation.ImageURL != nil,
	})
	w.Header().Set("Location", "/v1/donations/food")
	writeJSON(w, http.StatusCreated, listing)
}

// readImage loads the optional image part. It reports false after writing
// an error response.
func (a *API) readImage(w http.ResponseWriter, r *http.Request) (*donation.Image, bool) {
	file, header, err := r.FormFile(imageField)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, true
	}
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid image part")
		return nil, false
	}
	defer file.Close()
	if header.Size > a.maxUploadBytes {
		writeError(w, r, http.StatusRequestEntityTooLarge, "image is too large")
		return nil, false
	}
	data, err := io.ReadAll(io.LimitReader(file, a.maxUploadBytes+1))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid image part")
		return nil, false
	}
	if int64(len(data)) > a.maxUploadBytes {
		writeError(w, r, http.StatusRequestEntityTooLarge, "image is too large")
		return nil, false
	}
	if len(data) == 0 {
		return nil, true
	}
	return &donation.Image{
		Filename:    header.Filename,
		ContentType: http.DetectContentType(data),
		Data:        data,
	}, true
}

func (a *API) handleMoneyDonation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var form donation.PledgeForm
	if err := decodeJSON(w, r, &form); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	receipt, err := donation.SubmitPledge(currentSession(r).Identity, form, a.now())
	if err != nil {
		handleDonationError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "donation.money.pledged", map[string]any{
		"reference":  receipt.Reference,
		"amount":     receipt.Pledge.Amount.StringFixed(2),
		"recurrence": string(receipt.Pledge.Recurrence),
	})
	writeJSON(w, http.StatusOK, receipt)
}

func handleDonationError(w http.ResponseWriter, r *http.Request, err error) {
	var ferr *donation.FieldError
	switch {
	case errors.Is(err, donation.ErrAuthRequired):
		unauthorized(w, r, "You must be logged in to donate.")
	case errors.As(err, &ferr):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":      "Please fill all required fields.",
			"field":      ferr.Field,
			"request_id": RequestIDFromContext(r.Context()),
		})
	case errors.Is(err, donation.ErrInvalidImage):
		writeError(w, r, http.StatusBadRequest, "Please upload a valid image file.")
	case errors.Is(err, donation.ErrInvalidAmount),
		errors.Is(err, donation.ErrInvalidRecurrence),
		errors.Is(err, donation.ErrUnknownTier):
		writeError(w, r, http.StatusBadRequest, err.Error())
	default:
		obs.Error("donation request failed", map[string]any{
			"request_id": RequestIDFromContext(r.Context()),
			"err":        err,
		})
		writeError(w, r, http.StatusInternalServerError, "Could not save your donation. Please try again.")
	}
}
