// Package container persists the list of helper scripts the launcher starts.
package container

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// DefaultName is the base name of the record file, without extension.
const DefaultName = "ScriptsToLoad"

// Extension of the record file.
const Extension = ".xml"

// Namespace written on the root element, matching records produced by the
// original launcher. Decoding accepts any namespace.
const Namespace = "http://schemas.datacontract.org/2004/07/NRTyler.TheWitcher3.Launcher"

// Container holds the comma-separated, ordered list of helper scripts.
// The zero value is the default record: no scripts.
type Container struct {
	Scripts string
}

// New returns a container listing the given scripts.
func New(scripts ...string) Container {
	return Container{Scripts: strings.Join(scripts, ", ")}
}

// Names splits Scripts on commas and trims each entry. Blank entries are
// dropped, so "" yields no names rather than one empty one.
func (c Container) Names() []string {
	parts := strings.Split(c.Scripts, ",")
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			names = append(names, p)
		}
	}
	return names
}

// wireContainer is the on-disk form written by Encode.
type wireContainer struct {
	XMLName xml.Name `xml:"http://schemas.datacontract.org/2004/07/NRTyler.TheWitcher3.Launcher ScriptContainer"`
	XSI     string   `xml:"xmlns:i,attr"`
	Scripts string   `xml:"ScriptsToLoad"`
}

// readContainer accepts the root element in any namespace.
type readContainer struct {
	XMLName xml.Name `xml:"ScriptContainer"`
	Scripts string   `xml:"ScriptsToLoad"`
}

// ErrInvalidChar is returned by Encode for text an XML document cannot carry.
var ErrInvalidChar = errors.New("character not allowed in XML")

// Encode writes c as an indented XML document. Scripts must be valid UTF-8
// made of XML 1.0 characters; anything else is rejected rather than replaced.
func Encode(w io.Writer, c Container) error {
	if err := checkChars(c.Scripts); err != nil {
		return err
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(wireContainer{XSI: "http://www.w3.org/2001/XMLSchema-instance", Scripts: c.Scripts}); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func checkChars(s string) error {
	for i, r := range s {
		if r == utf8.RuneError {
			if _, size := utf8.DecodeRuneInString(s[i:]); size == 1 {
				return fmt.Errorf("byte %#x at offset %d: %w", s[i], i, ErrInvalidChar)
			}
		}
		if !xmlChar(r) {
			return fmt.Errorf("%U at offset %d: %w", r, i, ErrInvalidChar)
		}
	}
	return nil
}

// xmlChar reports whether r is in the Char production of XML 1.0.
func xmlChar(r rune) bool {
	switch {
	case r == 0x09, r == 0x0A, r == 0x0D:
		return true
	case r >= 0x20 && r <= 0xD7FF:
		return true
	case r >= 0xE000 && r <= 0xFFFD:
		return true
	case r >= 0x10000 && r <= 0x10FFFF:
		return true
	}
	return false
}

// Decode reads one record from r.
func Decode(r io.Reader) (Container, error) {
	var rc readContainer
	if err := xml.NewDecoder(r).Decode(&rc); err != nil {
		return Container{}, err
	}
	return Container{Scripts: rc.Scripts}, nil
}
