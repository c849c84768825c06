package law

import (
	"testing"
	"time"
)

func TestClassifyType(t *testing.T) {
	tests := []struct {
		in   string
		want Type
	}{
		{"Decreto-Lei", TypeDecretoLei},
		{"decreto lei", TypeDecretoLei},
		{"DECRETO_LEI", TypeDecretoLei},
		{"Lei Orgânica", TypeLeiOrganica},
		{"lei organica", TypeLeiOrganica},
		{"Resolução do Conselho de Ministros", TypeResolucaoCM},
		{"Decree-Law", TypeDecretoLei},
		{"Portaria", TypePortaria},
		{"Something Else", TypeOther},
		{"", TypeOther},
	}
	for _, tt := range tests {
		if got := ClassifyType(tt.in); got != tt.want {
			t.Errorf("ClassifyType(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestClassifyTypeCoversEveryName(t *testing.T) {
	for _, name := range TypeNames() {
		if got := ClassifyType(name); got == TypeOther {
			t.Errorf("ClassifyType(%q) = OTHER", name)
		}
	}
	for _, typ := range AllTypes() {
		if typ == TypeOther {
			continue
		}
		if PTName(typ) == "" {
			t.Errorf("PTName(%q) is empty", typ)
		}
	}
}

func TestSlug(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Decreto-Lei n.º 30/2017", "decreto-lei-no-302017"},
		{"Lei Orgânica  da   Saúde", "lei-organica-da-saude"},
		{"  --Código do Trabalho--  ", "codigo-do-trabalho"},
	}
	for _, tt := range tests {
		if got := Slug(tt.in); got != tt.want {
			t.Errorf("Slug(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	long := ""
	for i := 0; i < 40; i++ {
		long += "palavra "
	}
	if got := Slug(long); len(got) > maxSlugLen {
		t.Errorf("Slug length = %d, want <= %d", len(got), maxSlugLen)
	}
}

func TestParseMetadata(t *testing.T) {
	text := "Decreto-Lei n.º 30/2017, de 12 de março de 2017\n\nO presente decreto-lei estabelece o regime..."
	md := ParseMetadata(text)

	if md.Type != "Decreto-Lei" {
		t.Errorf("Type = %q, want Decreto-Lei", md.Type)
	}
	if md.Number != "30/2017" {
		t.Errorf("Number = %q, want 30/2017", md.Number)
	}
	want := time.Date(2017, time.March, 12, 0, 0, 0, 0, time.UTC)
	if !md.EnactmentDate.Equal(want) {
		t.Errorf("EnactmentDate = %v, want %v", md.EnactmentDate, want)
	}
	if md.Title != "Decreto-Lei n.º 30/2017, de 12 de março de 2017" {
		t.Errorf("Title = %q", md.Title)
	}
}

func TestParseMetadataPrefersLongerType(t *testing.T) {
	md := ParseMetadata("Lei Orgânica n.º 2/2020, de 4 de agosto de 2020")
	if md.Type != "Lei Orgânica" {
		t.Errorf("Type = %q, want Lei Orgânica", md.Type)
	}
	if md.Number != "2/2020" {
		t.Errorf("Number = %q, want 2/2020", md.Number)
	}
}

func TestParseMetadataWithoutDate(t *testing.T) {
	md := ParseMetadata("Portaria nº 7/2009\nArtigo 1.º")
	if !md.EnactmentDate.IsZero() {
		t.Errorf("EnactmentDate = %v, want zero", md.EnactmentDate)
	}
	if md.Number != "7/2009" {
		t.Errorf("Number = %q, want 7/2009", md.Number)
	}
}

func TestOfficialNumber(t *testing.T) {
	tests := []struct {
		name     string
		title    string
		text     string
		fallback string
		want     string
	}{
		{
			name:  "constitution",
			title: "Constituição da República Portuguesa",
			text:  "Constituição da República Portuguesa\nPrincípios fundamentais",
			want:  "CRP",
		},
		{
			name:  "typed number from text",
			title: "DL 30/2017",
			text:  "Decreto-Lei n.º 30/2017, de 12 de março de 2017",
			want:  "Decreto-Lei n.º 30/2017",
		},
		{
			name:  "number from title only",
			title: "Diploma 12/2020",
			text:  "Texto sem cabeçalho reconhecível",
			want:  "Lei n.º 12/2020",
		},
		{
			name:     "fallback id",
			title:    "Sem número",
			text:     "Nada aqui",
			fallback: "0f1e2d3c-aaaa-bbbb",
			want:     "0f1e2d3c",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := OfficialNumber(tt.title, ParseMetadata(tt.text), tt.fallback)
			if got != tt.want {
				t.Errorf("OfficialNumber = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestArticleKey(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Artigo 5.º-A", "5-A"},
		{"Artigo 12.º", "12"},
		{"Art. 3", "3"},
		{"Article 7", "7"},
		{"14.º", "14"},
		{"Artigo único", "UNICO"},
		{"005", "5"},
		{"PREAMBULO", "PREAMBULO"},
	}
	for _, tt := range tests {
		if got := ArticleKey(tt.in); got != tt.want {
			t.Errorf("ArticleKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseDate(t *testing.T) {
	if d, ok := ParseDate("2017-03-12T10:00:00Z"); !ok || FormatDate(d) != "2017-03-12" {
		t.Errorf("ParseDate RFC3339 = %v, %v", d, ok)
	}
	if d, ok := ParseDate("de 1 de janeiro de 2020"); !ok || FormatDate(d) != "2020-01-01" {
		t.Errorf("ParseDate PT = %v, %v", d, ok)
	}
	if _, ok := ParseDate("ontem"); ok {
		t.Error("ParseDate(ontem) should fail")
	}
	if FormatDate(time.Time{}) != "" {
		t.Error("FormatDate(zero) should be empty")
	}
}

func TestClassifyRelation(t *testing.T) {
	tests := []struct {
		in   string
		want RelationType
	}{
		{"amends", RelAmends},
		{"Altera", RelAmends},
		{"REVOKES", RelRevokes},
		{"revoga", RelRevokes},
		{"regulamenta", RelRegulates},
		{"references internal", RelInternal},
		{"cites", RelReferences},
		{"", RelReferences},
		{"whatever", RelReferences},
	}
	for _, tt := range tests {
		if got := ClassifyRelation(tt.in); got != tt.want {
			t.Errorf("ClassifyRelation(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTransitionStatus(t *testing.T) {
	tests := []struct {
		rel    RelationType
		full   bool
		want   Status
		wantOK bool
	}{
		{RelRevokes, false, StatusRevoked, true},
		{RelAmends, true, StatusSuperseded, true},
		{RelAmends, false, "", false},
		{RelReferences, true, "", false},
		{RelRegulates, false, "", false},
	}
	for _, tt := range tests {
		got, ok := TransitionStatus(tt.rel, tt.full)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("TransitionStatus(%s, %v) = %q, %v; want %q, %v", tt.rel, tt.full, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestNormalizeCategory(t *testing.T) {
	if got := NormalizeCategory("social security"); got != "SOCIAL_SECURITY" {
		t.Errorf("NormalizeCategory = %q", got)
	}
	if got := NormalizeCategory("maritime"); got != DefaultCategory {
		t.Errorf("NormalizeCategory(unknown) = %q, want %q", got, DefaultCategory)
	}
}
