// Package extract turns stored document bytes into plain text. Extraction
// never panics on malformed input: Text always returns something printable,
// and Extract reports why the text is only a placeholder.
package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/text/encoding/charmap"

	apperrors "github.com/ABNmmd/PFE-FSA/pkg/errors"
)

// Supported lists the file types with a real extractor.
var Supported = []string{"txt", "md", "html", "htm", "docx"}

// Text returns the document text, or a bracketed diagnostic placeholder when
// the type is unsupported or the content cannot be read.
func Text(content []byte, fileType string) string {
	text, _ := Extract(content, fileType)
	return text
}

// Extract returns the document text. On failure the returned string is a
// bracketed placeholder and the error wraps apperrors.ErrExtraction.
func Extract(content []byte, fileType string) (string, error) {
	ft := strings.ToLower(strings.TrimPrefix(fileType, "."))
	switch ft {
	case "txt", "md", "text":
		return plainText(content), nil
	case "html", "htm":
		text, err := HTMLText(bytes.NewReader(content))
		if err != nil {
			return fmt.Sprintf("[HTML text extraction failed: %v]", err),
				fmt.Errorf("%w: html: %v", apperrors.ErrExtraction, err)
		}
		return text, nil
	case "docx":
		text, err := docxText(content)
		if err != nil {
			return fmt.Sprintf("[Document text extraction partially failed: %v]", err),
				fmt.Errorf("%w: docx: %v", apperrors.ErrExtraction, err)
		}
		return text, nil
	case "pdf":
		return "[PDF text extraction is not available]",
			fmt.Errorf("%w: pdf extraction not supported", apperrors.ErrExtraction)
	default:
		return fmt.Sprintf("[Unsupported file type: %s]", fileType),
			fmt.Errorf("%w: unsupported file type %q", apperrors.ErrExtraction, fileType)
	}
}

// plainText decodes UTF-8, falling back to Latin-1 for byte sequences that
// are not valid UTF-8.
func plainText(content []byte) string {
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))
	if utf8.Valid(content) {
		return string(content)
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(content)
	if err != nil {
		return strings.ToValidUTF8(string(content), "\uFFFD")
	}
	return string(decoded)
}

var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true, "section": true,
	"article": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true,
	"h6": true, "blockquote": true, "pre": true, "header": true, "footer": true,
}

// HTMLText returns the visible text of an HTML document. Script, style and
// noscript contents are dropped and block elements end a line.
func HTMLText(r io.Reader) (string, error) {
	z := html.NewTokenizer(r)
	var b strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return "", err
			}
			return strings.TrimSpace(collapseLines(b.String())), nil
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			switch tag {
			case "script", "style", "noscript":
				skip++
			}
			if blockElements[tag] {
				b.WriteByte('\n')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			switch tag {
			case "script", "style", "noscript":
				if skip > 0 {
					skip--
				}
			}
			if blockElements[tag] {
				b.WriteByte('\n')
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}
}

func collapseLines(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.Join(strings.Fields(l), " "); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

// docxText reads the paragraphs of word/document.xml.
func docxText(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("opening archive: %w", err)
	}
	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return "", fmt.Errorf("word/document.xml not found")
	}
	rc, err := doc.Open()
	if err != nil {
		return "", fmt.Errorf("opening document part: %w", err)
	}
	defer rc.Close()

	dec := xml.NewDecoder(rc)
	var paras []string
	var cur strings.Builder
	inText := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parsing document part: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				cur.WriteByte('\t')
			case "br", "cr":
				cur.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				paras = append(paras, cur.String())
				cur.Reset()
			}
		case xml.CharData:
			if inText {
				cur.Write(t)
			}
		}
	}
	if cur.Len() > 0 {
		paras = append(paras, cur.String())
	}
	return strings.Join(paras, "\n"), nil
}
