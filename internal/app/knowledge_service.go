package app

import (
	"context"
	"fmt"
	"mime/multipart"
	"strings"

	"ropatopia/internal/auth"
	"ropatopia/internal/model"
	"ropatopia/internal/repository"
)

type KnowledgeService struct {
	gateway *Gateway
}

func NewKnowledgeService(gateway *Gateway) *KnowledgeService {
	return &KnowledgeService{gateway: gateway}
}

func (s *KnowledgeService) List(ctx context.Context, sess *auth.Session, sessionID string) ([]model.KnowledgeItem, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrInvalidInput
	}
	return s.gateway.For(sess).Knowledge.List(ctx, sessionID)
}

func (s *KnowledgeService) AddText(ctx context.Context, sess *auth.Session, sessionID string, text model.KnowledgeText) (*model.KnowledgeItem, error) {
	text, err := cleanKnowledgeText(text)
	if err != nil {
		return nil, err
	}
	return s.gateway.For(sess).Knowledge.AddText(ctx, sessionID, text)
}

func (s *KnowledgeService) UpdateText(ctx context.Context, sess *auth.Session, sessionID, knowledgeID string, text model.KnowledgeText) (*model.KnowledgeItem, error) {
	if strings.TrimSpace(knowledgeID) == "" {
		return nil, ErrInvalidInput
	}
	text, err := cleanKnowledgeText(text)
	if err != nil {
		return nil, err
	}
	return s.gateway.For(sess).Knowledge.UpdateText(ctx, sessionID, knowledgeID, text)
}

func (s *KnowledgeService) AddFile(ctx context.Context, sess *auth.Session, sessionID string, file *multipart.FileHeader) (*model.KnowledgeItem, error) {
	if file == nil {
		return nil, invalid("Please select a file to upload.")
	}
	info, err := NewFileInfo(file)
	if err != nil {
		return nil, err
	}
	f, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("open knowledge file failed: %w", err)
	}
	defer f.Close()
	return s.gateway.For(sess).Knowledge.AddFile(ctx, sessionID, repository.FileUpload{
		Filename:    info.Name,
		ContentType: uploadContentType(info),
		Reader:      f,
	})
}

func (s *KnowledgeService) Delete(ctx context.Context, sess *auth.Session, sessionID, knowledgeID string) error {
	if strings.TrimSpace(sessionID) == "" || strings.TrimSpace(knowledgeID) == "" {
		return ErrInvalidInput
	}
	return s.gateway.For(sess).Knowledge.Delete(ctx, sessionID, knowledgeID)
}

func cleanKnowledgeText(text model.KnowledgeText) (model.KnowledgeText, error) {
	text.Title = strings.TrimSpace(text.Title)
	text.Content = strings.TrimSpace(text.Content)
	if text.Title == "" {
		return text, invalid("Title is required.")
	}
	if text.Content == "" {
		return text, invalid("Content is required.")
	}
	return text, nil
}
