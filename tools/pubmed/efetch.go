package pubmed

import (
	"context"
	"encoding/xml"
	"html"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
)

// FetchAbstractsRequest is the input of pubmed_fetch_abstracts
type FetchAbstractsRequest struct {
	IDs []string `json:"ids" jsonschema:"title=IDs,description=PubMed ids (PMIDs) of the articles." validate:"required,min=1,max=50,dive,numeric"`
}

// Abstract is the fetched article
type Abstract struct {
	PMID     string   `json:"pmid"`
	Title    string   `json:"title"`
	Abstract string   `json:"abstract"`
	Authors  []string `json:"authors"`
	Journal  string   `json:"journal"`
	Year     string   `json:"year,omitempty"`
	DOI      string   `json:"doi,omitempty"`
	URL      string   `json:"url"`
}

// FetchAbstractsResult is the output of pubmed_fetch_abstracts
type FetchAbstractsResult struct {
	Articles []Abstract `json:"articles"`
	Count    int        `json:"count"`
	Missing  []string   `json:"missing,omitempty"`
}

type articleSet struct {
	XMLName  xml.Name    `xml:"PubmedArticleSet"`
	Articles []xmlRecord `xml:"PubmedArticle"`
}

type xmlRecord struct {
	Citation struct {
		PMID    string `xml:"PMID"`
		Article struct {
			Title    innerText `xml:"ArticleTitle"`
			Abstract struct {
				Texts []abstractText `xml:"AbstractText"`
			} `xml:"Abstract"`
			Authors []struct {
				LastName       string `xml:"LastName"`
				ForeName       string `xml:"ForeName"`
				Initials       string `xml:"Initials"`
				CollectiveName string `xml:"CollectiveName"`
			} `xml:"AuthorList>Author"`
			Journal struct {
				Title   string `xml:"Title"`
				PubDate struct {
					Year        string `xml:"Year"`
					MedlineDate string `xml:"MedlineDate"`
				} `xml:"JournalIssue>PubDate"`
			} `xml:"Journal"`
			ELocations []struct {
				Type  string `xml:"EIdType,attr"`
				Value string `xml:",chardata"`
			} `xml:"ELocationID"`
		} `xml:"Article"`
	} `xml:"MedlineCitation"`
	ArticleIDs []struct {
		Type  string `xml:"IdType,attr"`
		Value string `xml:",chardata"`
	} `xml:"PubmedData>ArticleIdList>ArticleId"`
}

type innerText struct {
	XML string `xml:",innerxml"`
}

type abstractText struct {
	Label string `xml:"Label,attr"`
	XML   string `xml:",innerxml"`
}

var (
	tagRE   = regexp.MustCompile(`<[^>]+>`)
	spaceRE = regexp.MustCompile(`\s+`)
)

// plainText strips inline markup like <i> and <sup> from the text
func plainText(s string) string {
	s = tagRE.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	return strings.TrimSpace(spaceRE.ReplaceAllString(s, " "))
}

// FetchAbstracts runs efetch for the ids
func (p *Provider) FetchAbstracts(ctx context.Context, req *FetchAbstractsRequest) (*FetchAbstractsResult, error) {
	q := p.query("pubmed")
	q.Set("id", strings.Join(req.IDs, ","))
	q.Set("retmode", "xml")
	q.Set("rettype", "abstract")

	var set articleSet
	if err := p.client.GetXML(ctx, p.baseURL+"/efetch.fcgi", q, nil, &set); err != nil {
		return nil, errors.Wrap(err, "failed to fetch PubMed abstracts")
	}

	res := &FetchAbstractsResult{Articles: make([]Abstract, 0, len(set.Articles))}
	found := map[string]bool{}
	for _, rec := range set.Articles {
		a := abstract(&rec)
		found[a.PMID] = true
		res.Articles = append(res.Articles, a)
	}
	for _, id := range req.IDs {
		if !found[id] {
			res.Missing = append(res.Missing, id)
		}
	}
	res.Count = len(res.Articles)
	return res, nil
}

func abstract(rec *xmlRecord) Abstract {
	art := &rec.Citation.Article
	a := Abstract{
		PMID:    strings.TrimSpace(rec.Citation.PMID),
		Title:   plainText(art.Title.XML),
		Journal: strings.TrimSpace(art.Journal.Title),
		Year:    art.Journal.PubDate.Year,
		Authors: []string{},
	}
	a.URL = ArticleURL(a.PMID)
	if a.Year == "" && len(art.Journal.PubDate.MedlineDate) >= 4 {
		a.Year = art.Journal.PubDate.MedlineDate[:4]
	}

	var sections []string
	for _, t := range art.Abstract.Texts {
		text := plainText(t.XML)
		if text == "" {
			continue
		}
		if t.Label != "" {
			text = t.Label + ": " + text
		}
		sections = append(sections, text)
	}
	a.Abstract = strings.Join(sections, "\n\n")

	for _, au := range art.Authors {
		switch {
		case au.CollectiveName != "":
			a.Authors = append(a.Authors, au.CollectiveName)
		case au.LastName != "":
			name := au.LastName
			if fn := strings.TrimSpace(au.ForeName); fn != "" {
				name = fn + " " + name
			} else if au.Initials != "" {
				name += " " + au.Initials
			}
			a.Authors = append(a.Authors, name)
		}
	}

	for _, id := range rec.ArticleIDs {
		if id.Type == "doi" {
			a.DOI = strings.TrimSpace(id.Value)
			break
		}
	}
	if a.DOI == "" {
		for _, el := range art.ELocations {
			if el.Type == "doi" {
				a.DOI = strings.TrimSpace(el.Value)
				break
			}
		}
	}
	return a
}
