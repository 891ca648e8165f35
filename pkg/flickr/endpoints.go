package flickr

import (
	"net/url"
	"strconv"
)

// RESTEndpoint is the Flickr REST API entry point. Overridable for tests.
const RESTEndpoint = "https://api.flickr.com/services/rest/"

// listExtras are the extra fields requested per list entry so most items can
// be exported without a separate detail call.
const listExtras = "description,date_upload,date_taken,original_format,tags,media,url_o,url_k,url_h,url_l"

// listPageURL builds the signed flickr.people.getPhotos request URL.
func (c *Client) listPageURL(page, perPage int) string {
	params := url.Values{}
	params.Set("method", "flickr.people.getPhotos")
	params.Set("user_id", c.userID())
	params.Set("extras", listExtras)
	params.Set("per_page", strconv.Itoa(perPage))
	params.Set("page", strconv.Itoa(page))
	return c.signedURL(params)
}

// photoInfoURL builds the signed flickr.photos.getInfo request URL.
func (c *Client) photoInfoURL(id string) string {
	params := url.Values{}
	params.Set("method", "flickr.photos.getInfo")
	params.Set("photo_id", id)
	return c.signedURL(params)
}

// photoExifURL builds the signed flickr.photos.getExif request URL.
func (c *Client) photoExifURL(id string) string {
	params := url.Values{}
	params.Set("method", "flickr.photos.getExif")
	params.Set("photo_id", id)
	return c.signedURL(params)
}

// photoCommentsURL builds the signed flickr.photos.comments.getList request URL.
func (c *Client) photoCommentsURL(id string) string {
	params := url.Values{}
	params.Set("method", "flickr.photos.comments.getList")
	params.Set("photo_id", id)
	return c.signedURL(params)
}

func (c *Client) signedURL(params url.Values) string {
	params.Set("format", "json")
	params.Set("nojsoncallback", "1")
	c.creds.signRequest(c.endpoint, params)
	return c.endpoint + "?" + params.Encode()
}

func (c *Client) userID() string {
	if c.user != "" {
		return c.user
	}
	return "me"
}
