package flickr

import (
	"strconv"
	"strings"
	"time"
)

// MediaKind distinguishes photos from videos.
type MediaKind string

const (
	MediaPhoto MediaKind = "photo"
	MediaVideo MediaKind = "video"
)

// Privacy is the visibility level of an item on the remote service.
type Privacy string

const (
	PrivacyPublic  Privacy = "public"
	PrivacyFriends Privacy = "friends"
	PrivacyFamily  Privacy = "family"
	PrivacyPrivate Privacy = "private"
)

// Item is one media object owned by the account. The identifier is
// remote-assigned and stable across pages.
type Item struct {
	ID             string
	Kind           MediaKind
	Title          string
	Description    string
	Tags           []string
	Privacy        Privacy
	Taken          time.Time
	Uploaded       time.Time
	OriginalURL    string
	OriginalFormat string
}

// Extension returns the file extension for the item's original asset.
// Videos without a recorded original format are served as mp4.
func (it *Item) Extension() string {
	if it.OriginalFormat != "" {
		return it.OriginalFormat
	}
	if it.Kind == MediaVideo {
		return "mp4"
	}
	return "jpg"
}

// ExifTag is one EXIF property the remote recorded for an item.
type ExifTag struct {
	Space string
	Tag   string
	Label string
	Value string
}

// Comment is one comment left on an item.
type Comment struct {
	Author     string
	AuthorName string
	Posted     time.Time
	Text       string
}

// Details bundles the per-item metadata that takes extra API calls to
// collect. Both slices may be empty: EXIF sharing can be disabled by the
// owner and most items have no comments.
type Details struct {
	Exif     []ExifTag
	Comments []Comment
}

// Page is one batch of items returned by a single list call. Pages reports
// the total page count as of this call only; the account can mutate between
// calls, so callers must re-read it from every response.
type Page struct {
	Index   int
	Pages   int
	PerPage int
	Total   int
	Items   []Item
}

// apiEnvelope is the outer shape of every REST response.
type apiEnvelope struct {
	Stat    string `json:"stat"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// photosResponse models flickr.people.getPhotos.
type photosResponse struct {
	apiEnvelope
	Photos struct {
		Page    int         `json:"page"`
		Pages   int         `json:"pages"`
		PerPage int         `json:"perpage"`
		Total   flexInt     `json:"total"`
		Photo   []photoJSON `json:"photo"`
	} `json:"photos"`
}

// photoInfoResponse models flickr.photos.getInfo.
type photoInfoResponse struct {
	apiEnvelope
	Photo struct {
		ID             string  `json:"id"`
		Media          string  `json:"media"`
		Server         string  `json:"server"`
		OriginalSecret string  `json:"originalsecret"`
		OriginalFormat string  `json:"originalformat"`
		Title          content `json:"title"`
		Description    content `json:"description"`
		Visibility     struct {
			IsPublic flexBool `json:"ispublic"`
			IsFriend flexBool `json:"isfriend"`
			IsFamily flexBool `json:"isfamily"`
		} `json:"visibility"`
		Dates struct {
			Taken  string  `json:"taken"`
			Posted flexInt `json:"posted"`
		} `json:"dates"`
		Tags struct {
			Tag []struct {
				Raw string `json:"raw"`
			} `json:"tag"`
		} `json:"tags"`
	} `json:"photo"`
}

// exifResponse models flickr.photos.getExif.
type exifResponse struct {
	apiEnvelope
	Photo struct {
		Exif []struct {
			TagSpace string  `json:"tagspace"`
			Tag      string  `json:"tag"`
			Label    string  `json:"label"`
			Raw      content `json:"raw"`
		} `json:"exif"`
	} `json:"photo"`
}

// commentsResponse models flickr.photos.comments.getList.
type commentsResponse struct {
	apiEnvelope
	Comments struct {
		Comment []struct {
			Author     string  `json:"author"`
			AuthorName string  `json:"authorname"`
			DateCreate flexInt `json:"datecreate"`
			Content    string  `json:"_content"`
		} `json:"comment"`
	} `json:"comments"`
}

// photoJSON is one list entry with the extras the export requests.
type photoJSON struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Description    content  `json:"description"`
	Media          string   `json:"media"`
	OriginalFormat string   `json:"originalformat"`
	URLOriginal    string   `json:"url_o"`
	URLLarge2K     string   `json:"url_k"`
	URLLarge1600   string   `json:"url_h"`
	URLLarge       string   `json:"url_l"`
	Tags           string   `json:"tags"`
	DateTaken      string   `json:"datetaken"`
	DateUpload     flexInt  `json:"dateupload"`
	IsPublic       flexBool `json:"ispublic"`
	IsFriend       flexBool `json:"isfriend"`
	IsFamily       flexBool `json:"isfamily"`
}

// content models Flickr's {"_content": "..."} wrapper.
type content struct {
	Content string `json:"_content"`
}

// flexInt tolerates Flickr returning numbers either as JSON numbers or as
// quoted strings, which varies by endpoint.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

// flexBool tolerates 0/1, true/false and quoted variants.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	switch strings.Trim(string(data), `"`) {
	case "1", "true":
		*f = true
	default:
		*f = false
	}
	return nil
}

// toItem converts a list entry to the domain Item.
func (p *photoJSON) toItem() Item {
	it := Item{
		ID:             p.ID,
		Kind:           MediaPhoto,
		Title:          p.Title,
		Description:    p.Description.Content,
		Privacy:        privacyOf(bool(p.IsPublic), bool(p.IsFriend), bool(p.IsFamily)),
		OriginalURL:    p.bestURL(),
		OriginalFormat: p.OriginalFormat,
	}
	if p.Media == "video" {
		it.Kind = MediaVideo
	}
	if p.Tags != "" {
		it.Tags = strings.Fields(p.Tags)
	}
	if t, err := time.Parse("2006-01-02 15:04:05", p.DateTaken); err == nil {
		it.Taken = t
	}
	if p.DateUpload > 0 {
		it.Uploaded = time.Unix(int64(p.DateUpload), 0).UTC()
	}
	return it
}

// bestURL prefers the original asset and falls back to the largest
// available rendition, the same preference order the remote UI uses.
func (p *photoJSON) bestURL() string {
	for _, u := range []string{p.URLOriginal, p.URLLarge2K, p.URLLarge1600, p.URLLarge} {
		if u != "" {
			return u
		}
	}
	return ""
}

func privacyOf(public, friend, family bool) Privacy {
	switch {
	case public:
		return PrivacyPublic
	case friend && family:
		return PrivacyFriends // friends+family collapses to the wider circle
	case friend:
		return PrivacyFriends
	case family:
		return PrivacyFamily
	default:
		return PrivacyPrivate
	}
}
