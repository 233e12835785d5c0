// Copyright 2024 The FlatCityBuf Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package flatcitybuf

import (
	"fmt"
	"strings"
)

// String returns a compact, human-readable summary of the header,
// useful for logging.
func (h *Header) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Header{Version:%s,FeaturesCount:%d,IndexNodeSize:%d", h.Version, h.FeaturesCount, h.IndexNodeSize)
	if h.Title != "" {
		fmt.Fprintf(&b, ",Title:%q", h.Title)
	}
	if h.GeographicalExtent != nil {
		fmt.Fprintf(&b, ",Extent:%s", h.GeographicalExtent.String())
	}
	if h.ReferenceSystem != nil {
		fmt.Fprintf(&b, ",CRS:%s", h.ReferenceSystem.String())
	}
	b.WriteString(",Columns:{")
	for i, c := range h.Columns {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s:%s", c.Name, c.Type)
	}
	b.WriteString("}")
	if len(h.AttributeIndices) > 0 {
		fmt.Fprintf(&b, ",AttributeIndices:%d", len(h.AttributeIndices))
	}
	if h.Checksum != 0 {
		fmt.Fprintf(&b, ",Checksum:%016x", h.Checksum)
	}
	b.WriteByte('}')
	return b.String()
}

func (e *GeographicalExtent) String() string {
	return fmt.Sprintf("[%g, %g, %g, %g, %g, %g]", e.Min[0], e.Min[1], e.Min[2], e.Max[0], e.Max[1], e.Max[2])
}

func (rs *ReferenceSystem) String() string {
	if rs.CodeString != "" {
		return rs.CodeString
	}
	return fmt.Sprintf("%s:%d", rs.Authority, rs.Code)
}
