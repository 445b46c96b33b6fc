package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/cardkeeper/internal/common"
	"github.com/dmitrijs2005/cardkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/cardkeeper/internal/server/services"
	"github.com/gin-gonic/gin"
)

func (s *Server) createCard(c *gin.Context) {
	ctx := c.Request.Context()
	var req createCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": err.Error()})
		return
	}
	if !validContent(c, *req.Content) {
		return
	}

	res, err := s.cards.Create(ctx, ownerID(c), *req.Content, req.LastClid)
	if err != nil {
		s.mutation("create", err)
		s.fail(c, "create card", err)
		return
	}
	s.mutation("create", nil)

	sync := s.syncPayload(res.Sync, withTime(c))
	c.JSON(http.StatusOK, mutationResponse{Code: codeOK, Card: toCardDTO(res.Card), syncDTO: &sync})
}

func (s *Server) updateCard(c *gin.Context) {
	ctx := c.Request.Context()
	cid, ok := cardID(c)
	if !ok {
		return
	}
	var req updateCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": err.Error()})
		return
	}
	if !validContent(c, *req.Content) {
		return
	}

	res, err := s.cards.Update(ctx, ownerID(c), cid, *req.Content, *req.LastVersion, req.LastClid)
	if err != nil {
		s.mutation("update", err)
		var conflict *services.ConflictError
		if errors.As(err, &conflict) {
			code := codeStale
			msg := "conflict version"
			if errors.Is(err, common.ErrVersionTooNew) {
				code = codeTooNew
				msg = "invalid version"
			}
			c.JSON(http.StatusOK, mutationResponse{Code: code, Msg: msg, Card: toCardDTO(conflict.Current)})
			return
		}
		s.fail(c, "update card", err)
		return
	}

	if res.Card.Version == *req.LastVersion {
		s.metrics.CardMutations.WithLabelValues("update", metrics.OutcomeNoop).Inc()
	} else {
		s.mutation("update", nil)
	}

	sync := s.syncPayload(res.Sync, withTime(c))
	c.JSON(http.StatusOK, mutationResponse{Code: codeOK, Card: toCardDTO(res.Card), syncDTO: &sync})
}

func (s *Server) deleteCard(c *gin.Context) {
	ctx := c.Request.Context()
	cid, ok := cardID(c)
	if !ok {
		return
	}
	cursor, ok := queryInt(c, "last_clid")
	if !ok {
		return
	}

	res, err := s.cards.Delete(ctx, ownerID(c), cid, cursor)
	s.mutation("delete", err)
	if err != nil {
		s.fail(c, "delete card", err)
		return
	}

	c.JSON(http.StatusOK, changesResponse{Code: codeOK, syncDTO: s.syncPayload(res, withTime(c))})
}

func (s *Server) getCard(c *gin.Context) {
	ctx := c.Request.Context()
	cid, ok := cardID(c)
	if !ok {
		return
	}

	card, err := s.cards.Get(ctx, ownerID(c), cid)
	if err != nil {
		s.fail(c, "get card", err)
		return
	}

	resp := cardResponse{Code: codeOK, Card: toCardDTO(card)}
	if !s.attachChanges(c, &resp.syncDTO) {
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) listCards(c *gin.Context) {
	ctx := c.Request.Context()
	if c.Query("first_cid") == "" || c.Query("last_cid") == "" {
		c.JSON(http.StatusNotFound, gin.H{"msg": "first_cid and last_cid are required"})
		return
	}
	first, ok := queryInt(c, "first_cid")
	if !ok {
		return
	}
	last, ok := queryInt(c, "last_cid")
	if !ok {
		return
	}

	cards, err := s.cards.List(ctx, ownerID(c), first, last)
	if err != nil {
		s.fail(c, "list cards", err)
		return
	}

	resp := cardsResponse{Code: codeOK, Cards: make([]*cardDTO, 0, len(cards))}
	for _, card := range cards {
		resp.Cards = append(resp.Cards, toCardDTO(card))
	}
	if !s.attachChanges(c, &resp.syncDTO) {
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) cardHistory(c *gin.Context) {
	ctx := c.Request.Context()
	cid, ok := cardID(c)
	if !ok {
		return
	}

	entries, state, err := s.cards.History(ctx, ownerID(c), cid)
	if err != nil {
		s.fail(c, "card history", err)
		return
	}

	resp := historyResponse{
		Code: codeOK,
		CID:  cid,
		State: historyStateDTO{
			Version:    state.Version,
			Content:    state.Content,
			UpdateTime: state.UpdateTime,
			Deleted:    state.Deleted,
		},
		Entries: make([]historyEntryDTO, 0, len(entries)),
	}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, historyEntryDTO{
			Clid:       e.ID,
			Version:    e.Version,
			Content:    e.Content,
			UpdateTime: e.UpdateTime,
		})
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) changes(c *gin.Context) {
	ctx := c.Request.Context()
	cursor, ok := queryInt(c, "last_clid")
	if !ok {
		return
	}

	res, err := s.cards.Changes(ctx, ownerID(c), cursor)
	if err != nil {
		s.fail(c, "changes", err)
		return
	}
	c.JSON(http.StatusOK, changesResponse{Code: codeOK, syncDTO: s.syncPayload(res, withTime(c))})
}

func (s *Server) export(c *gin.Context) {
	res, err := s.exports.Export(c.Request.Context(), ownerID(c))
	if err != nil {
		s.fail(c, "export", err)
		return
	}
	c.JSON(http.StatusOK, exportResponse{Code: codeOK, Key: res.Key, URL: res.URL, Clid: res.Clid})
}

func (s *Server) register(c *gin.Context) {
	ctx := c.Request.Context()
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": err.Error()})
		return
	}

	user, err := s.users.Register(ctx, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, common.ErrUserExists) {
			c.JSON(http.StatusConflict, gin.H{"msg": err.Error()})
			return
		}
		s.fail(c, "register", err)
		return
	}
	c.JSON(http.StatusOK, registerResponse{Code: codeOK, UserID: user.ID})
}

func (s *Server) login(c *gin.Context) {
	ctx := c.Request.Context()
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": err.Error()})
		return
	}

	tokens, err := s.users.Login(ctx, req.Username, req.Password)
	if err != nil {
		s.fail(c, "login", err)
		return
	}
	c.JSON(http.StatusOK, tokensResponse{Code: codeOK, AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken})
}

func (s *Server) refresh(c *gin.Context) {
	ctx := c.Request.Context()
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": err.Error()})
		return
	}

	tokens, err := s.users.RefreshToken(ctx, req.RefreshToken)
	if err != nil {
		s.fail(c, "refresh token", err)
		return
	}
	c.JSON(http.StatusOK, tokensResponse{Code: codeOK, AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken})
}

// fail maps a service error to an HTTP status and logs the ones that are not
// the caller's fault.
// validContent rejects NUL bytes, which PostgreSQL TEXT cannot store.
func validContent(c *gin.Context, content string) bool {
	if strings.ContainsRune(content, 0) {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "content must not contain NUL bytes"})
		return false
	}
	return true
}

func (s *Server) fail(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, common.ErrorNotFound):
		c.JSON(http.StatusNotFound, gin.H{"msg": "not found"})
	case errors.Is(err, common.ErrorValidation):
		c.JSON(http.StatusBadRequest, gin.H{"msg": err.Error()})
	case errors.Is(err, common.ErrorUnauthorized), errors.Is(err, common.ErrRefreshTokenExpired):
		c.JSON(http.StatusUnauthorized, gin.H{"msg": err.Error()})
	default:
		s.logger.Error(c.Request.Context(), op+" failed", "err", err, "request_id", c.GetString(requestIDKey))
		c.JSON(http.StatusInternalServerError, gin.H{"msg": "internal error"})
	}
}

func (s *Server) mutation(op string, err error) {
	outcome := metrics.OutcomeOK
	switch {
	case err == nil:
	case errors.Is(err, common.ErrVersionTooNew):
		outcome = metrics.OutcomeTooNew
	case errors.Is(err, common.ErrVersionStale):
		outcome = metrics.OutcomeStale
	case errors.Is(err, common.ErrorNotFound):
		outcome = metrics.OutcomeNotFound
	default:
		outcome = metrics.OutcomeError
	}
	s.metrics.CardMutations.WithLabelValues(op, outcome).Inc()
}

func (s *Server) syncPayload(r *services.SyncResult, withTime bool) syncDTO {
	s.metrics.SyncChanges.Observe(float64(len(r.Changes)))
	return toSyncDTO(r, withTime)
}

// attachChanges adds clid and changes to a read response when the request
// carries last_clid. It reports false if it already wrote an error.
func (s *Server) attachChanges(c *gin.Context, dst **syncDTO) bool {
	if c.Query("last_clid") == "" {
		return true
	}
	cursor, ok := queryInt(c, "last_clid")
	if !ok {
		return false
	}
	res, err := s.cards.Changes(c.Request.Context(), ownerID(c), cursor)
	if err != nil {
		s.fail(c, "changes", err)
		return false
	}
	sync := s.syncPayload(res, withTime(c))
	*dst = &sync
	return true
}

func ownerID(c *gin.Context) string {
	return c.GetString(ownerIDKey)
}

func withTime(c *gin.Context) bool {
	return c.Query("with_time") == "1"
}

func cardID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("cid"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid card id"})
		return 0, false
	}
	return id, true
}

// queryInt parses an optional integer query parameter; absent means 0.
func queryInt(c *gin.Context, key string) (int64, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid " + key})
		return 0, false
	}
	return v, true
}
