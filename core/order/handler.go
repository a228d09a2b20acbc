package order

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/veciapp/marketplace/api/web"
	"github.com/veciapp/marketplace/api/weberr"
	"github.com/veciapp/marketplace/core/checkout"
	"github.com/veciapp/marketplace/core/claims"
	"github.com/veciapp/marketplace/core/store"
	"github.com/veciapp/marketplace/validate"
)

// proofMaxBytes caps a payment proof upload.
const proofMaxBytes = 10 << 20

func toWebErr(err error) error {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, checkout.ErrSessionNotFound):
		return weberr.NotFound(err)
	case errors.Is(err, ErrDuplicate):
		return weberr.Conflict(err, err.Error())
	case errors.Is(err, ErrInvalidPaymentMethod):
		return weberr.NewError(err, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrProofExpired):
		return weberr.Unprocessable(err, err.Error())
	}
	return err
}

func HandleCreate(db *sqlx.DB, log logrus.FieldLogger) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(err)
		}

		var no OrderNew
		if err := web.Decode(w, r, &no); err != nil {
			return weberr.BadRequest(err)
		}

		if err := validate.Check(no); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		o, err := Create(ctx, db, clm.UserID, no)
		if err != nil {
			return toWebErr(err)
		}

		log.WithFields(logrus.Fields{
			"order_id":  o.ID,
			"reference": o.Reference,
			"store_id":  o.StoreID,
			"outcome":   "ok",
		}).Info("order created")

		return web.Respond(ctx, w, o, http.StatusCreated)
	}
}

func HandleListOwn(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(err)
		}

		list, err := ListForUser(ctx, db, clm.UserID)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, list, http.StatusOK)
	}
}

func HandleShowOwn(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(err)
		}

		orderID := web.Param(r, "id")
		if err := validate.CheckID(orderID); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		o, err := FetchOwned(ctx, db, orderID, clm.UserID)
		if err != nil {
			return toWebErr(err)
		}

		return web.Respond(ctx, w, o, http.StatusOK)
	}
}

// HandleUploadProof stores the buyer's payment proof on disk and links
// it to the order. Files land under
// <uploads>/stores/<store>/orders/<order>/proof/.
func HandleUploadProof(db *sqlx.DB, uploadDir string, log logrus.FieldLogger) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(err)
		}

		orderID := web.Param(r, "id")
		if err := validate.CheckID(orderID); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		o, err := GuardProof(ctx, db, orderID, clm.UserID)
		if err != nil {
			return toWebErr(err)
		}

		r.Body = http.MaxBytesReader(w, r.Body, proofMaxBytes)
		file, header, err := r.FormFile("proof")
		if err != nil {
			return weberr.NewError(err, "a proof file is required", http.StatusBadRequest)
		}
		defer file.Close()

		rel, err := saveProof(uploadDir, o.StoreID, o.ID, header.Filename, file)
		if err != nil {
			return err
		}

		o, err = AttachProof(ctx, db, orderID, clm.UserID, rel)
		if err != nil {
			return toWebErr(err)
		}

		log.WithFields(logrus.Fields{
			"order_id": o.ID,
			"proof":    rel,
			"outcome":  "ok",
		}).Info("payment proof uploaded")

		return web.Respond(ctx, w, o, http.StatusOK)
	}
}

// saveProof writes the upload to disk and returns the path stored on
// the order, relative to the upload root.
func saveProof(uploadDir, storeID, orderID, filename string, src io.Reader) (string, error) {
	name := filepath.Base(filepath.Clean(filename))
	if name == "." || name == string(filepath.Separator) {
		return "", weberr.NewError(fmt.Errorf("invalid file name %q", filename), "invalid file name", http.StatusBadRequest)
	}

	rel := filepath.Join("stores", storeID, "orders", orderID, "proof", name)
	abs := filepath.Join(uploadDir, rel)

	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", fmt.Errorf("creating proof directory: %w", err)
	}

	dst, err := os.Create(abs)
	if err != nil {
		return "", fmt.Errorf("creating proof file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("writing proof file: %w", err)
	}

	return rel, nil
}

func HandleListByStore(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(err)
		}

		storeID := web.Param(r, "store_id")
		if err := validate.CheckID(storeID); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		if err := requireAdmin(ctx, db, storeID, clm.UserID); err != nil {
			return err
		}

		list, err := ListForStore(ctx, db, storeID)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, list, http.StatusOK)
	}
}

func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(err)
		}

		orderID := web.Param(r, "id")
		if err := validate.CheckID(orderID); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		o, err := Fetch(ctx, db, orderID)
		if err != nil {
			return toWebErr(err)
		}

		if err := requireAdmin(ctx, db, o.StoreID, clm.UserID); err != nil {
			return err
		}

		return web.Respond(ctx, w, o, http.StatusOK)
	}
}

func HandleUpdateStatus(db *sqlx.DB, log logrus.FieldLogger) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(err)
		}

		orderID := web.Param(r, "id")
		if err := validate.CheckID(orderID); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		var up StatusUpdate
		if err := web.Decode(w, r, &up); err != nil {
			return weberr.BadRequest(err)
		}

		if err := validate.Check(up); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		o, err := Fetch(ctx, db, orderID)
		if err != nil {
			return toWebErr(err)
		}

		if err := requireAdmin(ctx, db, o.StoreID, clm.UserID); err != nil {
			return err
		}

		o, err = UpdateStatus(ctx, db, orderID, Status(up.Status))
		if err != nil {
			return toWebErr(err)
		}

		log.WithFields(logrus.Fields{
			"order_id": o.ID,
			"status":   o.Status,
			"outcome":  "ok",
		}).Info("order status updated")

		return web.Respond(ctx, w, o, http.StatusOK)
	}
}

func requireAdmin(ctx context.Context, db sqlx.ExtContext, storeID, userID string) error {
	ok, err := store.IsAdmin(ctx, db, storeID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return weberr.Forbidden(fmt.Errorf("user[%s] does not administer store[%s]", userID, storeID))
	}
	return nil
}
