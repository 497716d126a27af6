package intercom

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kennteohstorehub/BeepChatBot/pkg/config"
)

// Client Intercom 会话 API 封装
type Client struct {
	baseURL string
	token   string
	adminID string
	http    *http.Client
}

// NewClient 创建 Intercom 客户端
func NewClient(cfg config.IntercomConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		token:   cfg.AccessToken,
		adminID: cfg.AdminID,
		http:    &http.Client{Timeout: timeout},
	}
}

type replyRequest struct {
	Type        string `json:"type"`
	AdminID     string `json:"admin_id"`
	MessageType string `json:"message_type"`
	Body        string `json:"body"`
}

// Reply 以机器人身份回复用户
func (c *Client) Reply(ctx context.Context, conversationID, body string) error {
	return c.reply(ctx, conversationID, "comment", body)
}

// AddNote 添加内部备注（用户不可见）
func (c *Client) AddNote(ctx context.Context, conversationID, note string) error {
	return c.reply(ctx, conversationID, "note", note)
}

func (c *Client) reply(ctx context.Context, conversationID, messageType, body string) error {
	req := replyRequest{
		Type:        "admin",
		AdminID:     c.adminID,
		MessageType: messageType,
		Body:        body,
	}
	if err := c.do(ctx, http.MethodPost, "/conversations/"+url.PathEscape(conversationID)+"/reply", req, nil); err != nil {
		return fmt.Errorf("intercom %s failed: %w", messageType, err)
	}
	return nil
}

type tag struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type conversation struct {
	Tags struct {
		Tags []tag `json:"tags"`
	} `json:"tags"`
}

// Tag 给会话追加标签，保留已有标签，不存在的标签会先创建
func (c *Client) Tag(ctx context.Context, conversationID string, names []string) error {
	var conv conversation
	path := "/conversations/" + url.PathEscape(conversationID)
	if err := c.do(ctx, http.MethodGet, path, nil, &conv); err != nil {
		return fmt.Errorf("get conversation failed: %w", err)
	}

	ids, err := c.tagIDs(ctx, names)
	if err != nil {
		return err
	}

	seen := make(map[string]struct{})
	merged := make([]string, 0, len(conv.Tags.Tags)+len(ids))
	for _, t := range conv.Tags.Tags {
		if _, ok := seen[t.ID]; !ok {
			seen[t.ID] = struct{}{}
			merged = append(merged, t.ID)
		}
	}
	for _, id := range ids {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			merged = append(merged, id)
		}
	}

	body := map[string]interface{}{"tags": merged}
	if err := c.do(ctx, http.MethodPut, path, body, nil); err != nil {
		return fmt.Errorf("update conversation tags failed: %w", err)
	}
	return nil
}

// tagIDs 按名称查找标签 ID，缺失的标签自动创建
func (c *Client) tagIDs(ctx context.Context, names []string) ([]string, error) {
	var list struct {
		Data []tag `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/tags", nil, &list); err != nil {
		return nil, fmt.Errorf("list tags failed: %w", err)
	}

	byName := make(map[string]string, len(list.Data))
	for _, t := range list.Data {
		byName[t.Name] = t.ID
	}

	ids := make([]string, 0, len(names))
	for _, name := range names {
		if id, ok := byName[name]; ok {
			ids = append(ids, id)
			continue
		}
		var created tag
		if err := c.do(ctx, http.MethodPost, "/tags", map[string]string{"name": name}, &created); err != nil {
			return nil, fmt.Errorf("create tag %s failed: %w", name, err)
		}
		ids = append(ids, created.ID)
	}
	return ids, nil
}

// AssignToTeam 将会话分配给人工团队
func (c *Client) AssignToTeam(ctx context.Context, conversationID, teamID string) error {
	body := map[string]string{
		"assignee_type": "team",
		"assignee_id":   teamID,
	}
	if err := c.do(ctx, http.MethodPut, "/conversations/"+url.PathEscape(conversationID), body, nil); err != nil {
		return fmt.Errorf("assign conversation failed: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status=%d body=%s", resp.StatusCode, snippet)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
