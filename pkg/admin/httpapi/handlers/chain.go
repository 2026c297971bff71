package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/storacha/devchain/pkg/admin/httpapi"
	"github.com/storacha/devchain/pkg/devchain"
)

const stopTimeout = 30 * time.Second

// Chain is the running chain as seen by the management API.
type Chain interface {
	Status() devchain.Status
	Stop(ctx context.Context) error
}

type ChainHandler struct {
	chain Chain
}

func NewChainHandler(chain Chain) *ChainHandler {
	return &ChainHandler{chain: chain}
}

func (h *ChainHandler) Status(ctx echo.Context) error {
	st := h.chain.Status()
	return ctx.JSON(http.StatusOK, &httpapi.StatusResponse{
		State:     st.State,
		URL:       st.URL,
		Port:      st.Port,
		DataDir:   st.DataDir,
		Ephemeral: st.Ephemeral,
		Backend:   st.Backend,
	})
}

// Stop stops the chain, which in turn shuts the process down.
func (h *ChainHandler) Stop(ctx echo.Context) error {
	running := h.chain.Status().State == "running"

	// the stop must complete even if the client goes away
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx.Request().Context()), stopTimeout)
	defer cancel()
	if err := h.chain.Stop(stopCtx); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, &httpapi.StopResponse{Stopped: running})
}
