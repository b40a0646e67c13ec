package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/John-Robertt/quizcarry/internal/config"
	"github.com/John-Robertt/quizcarry/internal/infra/fsx"
	"github.com/John-Robertt/quizcarry/internal/surface"
	"github.com/John-Robertt/quizcarry/internal/surface/htmldoc"
	"github.com/John-Robertt/quizcarry/internal/surface/rodpage"
)

// source 是一次运行的文档表面：保存的 HTML 文件，或浏览器中的实时页面。
type source struct {
	Doc surface.Document
	// HTML 只在文件来源时非空，用于回放后写出改写的页面。
	HTML  *htmldoc.Document
	close func() error
}

func (s *source) Close() error {
	if s == nil || s.close == nil {
		return nil
	}
	return s.close()
}

func openSource(ctx context.Context, eff config.EffectiveConfig, logger *slog.Logger) (*source, error) {
	if eff.Document != "" {
		b, err := os.ReadFile(eff.Document)
		if err != nil {
			return nil, fmt.Errorf("读取文档失败：%w", err)
		}
		doc, err := htmldoc.ParseBytes(b)
		if err != nil {
			return nil, fmt.Errorf("解析文档失败：%w", err)
		}
		return &source{Doc: doc, HTML: doc}, nil
	}

	sess, err := rodpage.Connect(ctx, eff.Browser, eff.Page, logger)
	if err != nil {
		return nil, err
	}
	return &source{Doc: sess, close: sess.Close}, nil
}

func writeHTML(path string, doc *htmldoc.Document) error {
	var buf bytes.Buffer
	if err := doc.Render(&buf); err != nil {
		return fmt.Errorf("序列化 HTML 失败：%w", err)
	}
	return fsx.WriteFileAtomic(path, buf.Bytes())
}
