package dfxml

import (
	"encoding/xml"
	"errors"
	"io"
)

// Document is a parsed report.
type Document struct {
	Source      Source
	FileObjects []FileObject
}

// Read parses the <source> element and every <fileobject> element from r.
func Read(r io.Reader) (*Document, error) {
	dec := xml.NewDecoder(r)
	doc := &Document{}

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return doc, nil
		}
		if err != nil {
			return nil, err
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		switch start.Name.Local {
		case "source":
			if err := dec.DecodeElement(&doc.Source, &start); err != nil {
				return nil, err
			}
		case "fileobject":
			var fo FileObject
			if err := dec.DecodeElement(&fo, &start); err != nil {
				return nil, err
			}
			doc.FileObjects = append(doc.FileObjects, fo)
		}
	}
}
