package httpapi

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/socraticlab/recall/internal/ranker"
	"github.com/socraticlab/recall/internal/store"
	"github.com/socraticlab/recall/pkg/types"
)

const defaultProjectName = "기본"

func (s *Server) handleSetUser(c *fiber.Ctx) error {
	var req struct {
		Nickname string `json:"nickname"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	req.Nickname = strings.TrimSpace(req.Nickname)
	if req.Nickname == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "nickname required"})
	}

	s.sessions.Start(c, req.Nickname)

	// Warm the user's indexes from the store so recall survives restarts.
	if err := s.indexer.Rehydrate(c.UserContext(), req.Nickname); err != nil {
		s.logger.Error("rehydrate on login failed", zap.String("user_id", req.Nickname), zap.Error(err))
		return c.Status(statusFor(err)).JSON(fiber.Map{"error": "index rebuild failed"})
	}
	return c.JSON(fiber.Map{"user": req.Nickname})
}

func (s *Server) handleLogout(c *fiber.Ctx) error {
	s.sessions.End(c)
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleCreateProject(c *fiber.Ctx) error {
	sess := s.sessions.Get(c)
	if sess == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "set_user first"})
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name required"})
	}
	name := strings.TrimSpace(req.Name)

	project, err := s.store.CreateProject(c.UserContext(), sess.UserID, name)
	if errors.Is(err, store.ErrAlreadyExists) {
		// Creating an existing project switches to it.
		project, err = s.store.GetProjectByName(c.UserContext(), sess.UserID, name)
	}
	if err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}
	sess.ProjectID = &project.ID
	return c.JSON(fiber.Map{"project": project})
}

func (s *Server) handleListProjects(c *fiber.Ctx) error {
	sess := s.sessions.Get(c)
	if sess == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "set_user first"})
	}
	projects, err := s.store.ListProjects(c.UserContext(), sess.UserID)
	if err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(projects)
}

func (s *Server) handleSelectProject(c *fiber.Ctx) error {
	sess := s.sessions.Get(c)
	if sess == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "set_user first"})
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := c.BodyParser(&req); err != nil || req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name required"})
	}
	project, err := s.store.GetProjectByName(c.UserContext(), sess.UserID, req.Name)
	if err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}
	sess.ProjectID = &project.ID
	return c.JSON(fiber.Map{"project": project})
}

func (s *Server) handleRenameProject(c *fiber.Ctx) error {
	sess := s.sessions.Get(c)
	if sess == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "set_user first"})
	}
	var req struct {
		Name    string `json:"name"`
		NewName string `json:"new_name"`
	}
	if err := c.BodyParser(&req); err != nil || req.Name == "" || req.NewName == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name and new_name required"})
	}
	project, err := s.store.GetProjectByName(c.UserContext(), sess.UserID, req.Name)
	if err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}
	if err := s.store.RenameProject(c.UserContext(), sess.UserID, project.ID, req.NewName); err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleDeleteProject(c *fiber.Ctx) error {
	sess := s.sessions.Get(c)
	if sess == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "set_user first"})
	}
	project, err := s.store.GetProjectByName(c.UserContext(), sess.UserID, c.Params("name"))
	if err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}
	if err := s.indexer.DeleteProject(c.UserContext(), sess.UserID, project.ID); err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}
	if sess.ProjectID != nil && *sess.ProjectID == project.ID {
		sess.ProjectID = nil
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleChat(c *fiber.Ctx) error {
	var req struct {
		Message string `json:"message"`
	}
	if err := c.BodyParser(&req); err != nil || req.Message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "message required"})
	}
	sess := s.sessions.Get(c)
	if sess == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "set_user first"})
	}
	if s.chat == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "assistant not configured"})
	}
	projectID, err := s.currentProject(c, sess)
	if err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}

	reply, err := s.chat.Send(c.UserContext(), sess.UserID, projectID, req.Message)
	if err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}
	resp := fiber.Map{"response": reply.Text}
	if reply.Reference != nil {
		resp["reference"] = reply.Reference
	}
	return c.JSON(resp)
}

func (s *Server) handleSummarize(c *fiber.Ctx) error {
	sess := s.sessions.Get(c)
	if sess == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "set_user first"})
	}
	if s.chat == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "assistant not configured"})
	}
	projectID, err := s.currentProject(c, sess)
	if err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}
	reply, err := s.chat.Summarize(c.UserContext(), sess.UserID, projectID)
	if err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"response": reply.Text})
}

func (s *Server) handleNextStep(c *fiber.Ctx) error {
	sess := s.sessions.Get(c)
	if sess == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "set_user first"})
	}
	if s.chat == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "assistant not configured"})
	}
	var req struct {
		Step int `json:"step"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	projectID, err := s.currentProject(c, sess)
	if err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}
	reply, err := s.chat.NextStep(c.UserContext(), sess.UserID, projectID, req.Step)
	if err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"response": reply.Text, "step": req.Step})
}

func (s *Server) handleSearch(c *fiber.Ctx) error {
	var req struct {
		Query string `json:"query"`
		Mode  string `json:"mode"`
		Limit int    `json:"limit"`
	}
	if err := c.BodyParser(&req); err != nil || req.Query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "query required"})
	}
	sess := s.sessions.Get(c)
	if sess == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "set_user first"})
	}

	resp, err := s.ranker.Search(c.UserContext(), rankerRequest(sess.UserID, req.Query, req.Mode, req.Limit))
	if err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}
	sess.LastSearch = resp
	return c.JSON(resp)
}

func (s *Server) handleMemory(c *fiber.Ctx) error {
	sess := s.sessions.Get(c)
	if sess == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "set_user first"})
	}

	projects, err := s.store.ListProjects(c.UserContext(), sess.UserID)
	if err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}

	type projectMemory struct {
		Project *types.Project `json:"project"`
		Turns   []*types.Turn  `json:"turns"`
	}
	memory := make([]projectMemory, 0, len(projects))
	for _, p := range projects {
		turns, err := s.store.ListTurns(c.UserContext(), sess.UserID, p.ID)
		if err != nil {
			return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
		}
		memory = append(memory, projectMemory{Project: p, Turns: turns})
	}

	resp := fiber.Map{"user": sess.UserID, "projects": memory}
	if sess.LastSearch != nil {
		resp["last_search"] = sess.LastSearch
	}
	return c.JSON(resp)
}

func (s *Server) handleReport(c *fiber.Ctx) error {
	sess := s.sessions.Get(c)
	if sess == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "set_user first"})
	}
	projectID, err := s.currentProject(c, sess)
	if err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}
	project, err := s.store.GetProject(c.UserContext(), sess.UserID, projectID)
	if err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}
	turns, err := s.store.ListTurns(c.UserContext(), sess.UserID, projectID)
	if err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"report": renderReport(project, turns, sess.LastSearch)})
}

// handleReset clears the current project's conversation by recreating the
// project. Without a session or project there is nothing to clear.
func (s *Server) handleReset(c *fiber.Ctx) error {
	sess := s.sessions.Get(c)
	if sess == nil || sess.ProjectID == nil {
		return c.JSON(fiber.Map{"status": "ok"})
	}

	project, err := s.store.GetProject(c.UserContext(), sess.UserID, *sess.ProjectID)
	if err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}
	if err := s.indexer.DeleteProject(c.UserContext(), sess.UserID, project.ID); err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}
	fresh, err := s.store.CreateProject(c.UserContext(), sess.UserID, project.Name)
	if err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}
	sess.ProjectID = &fresh.ID
	return c.JSON(fiber.Map{"status": "ok"})
}

// currentProject resolves the session's active project, creating the
// default one on first use.
func (s *Server) currentProject(c *fiber.Ctx, sess *Session) (uuid.UUID, error) {
	if sess.ProjectID != nil {
		return *sess.ProjectID, nil
	}
	project, err := s.store.CreateProject(c.UserContext(), sess.UserID, defaultProjectName)
	if errors.Is(err, store.ErrAlreadyExists) {
		project, err = s.store.GetProjectByName(c.UserContext(), sess.UserID, defaultProjectName)
	}
	if err != nil {
		return uuid.Nil, err
	}
	sess.ProjectID = &project.ID
	return project.ID, nil
}

// rankerRequest maps the wire fields onto a search request. Unknown modes
// pass through so validation rejects them with one message.
func rankerRequest(userID, query, mode string, limit int) ranker.Request {
	return ranker.Request{
		UserID: userID,
		Query:  query,
		Mode:   types.SearchMode(mode),
		Limit:  limit,
	}
}

func renderReport(project *types.Project, turns []*types.Turn, lastSearch *types.SearchResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", project.Name)
	fmt.Fprintf(&b, "총 %d개의 턴\n\n## 대화\n\n", len(turns))
	for _, t := range turns {
		speaker := "사용자"
		if t.Role == types.RoleAssistant {
			speaker = "도우미"
		}
		fmt.Fprintf(&b, "- **%s** (%s): %s\n", speaker, t.CreatedAt.Format("2006-01-02 15:04"), t.Text)
	}
	if lastSearch != nil && len(lastSearch.Results) > 0 {
		fmt.Fprintf(&b, "\n## 최근 검색 (%s)\n\n", lastSearch.Mode)
		for _, r := range lastSearch.Results {
			fmt.Fprintf(&b, "%d. %s (score %.3f)\n", r.Rank, r.Snippet, r.Score)
		}
	}
	return b.String()
}
