package models

// Link is a labelled link on an item page, such as a tag or a download.
type Link struct {
	Item string `json:"item"`
	Link string `json:"link"`
}

// CastMember is a performer credited on an item page.
type CastMember struct {
	Page      string `json:"actor_page"`
	Name      string `json:"actor_name"`
	Thumbnail string `json:"actor_thumbnail"`
}

// ItemDetails is everything extracted from an item page. It is written to
// the library as the details file.
type ItemDetails struct {
	URL            string       `json:"url"`
	Title          string       `json:"title"`
	Description    string       `json:"description"`
	Studio         string       `json:"studio_name"`
	Director       string       `json:"director"`
	Released       string       `json:"released"`
	Views          int64        `json:"view_count"`
	Likes          int64        `json:"like_count"`
	BannerImage    string       `json:"banner_image_link"`
	ThumbnailImage string       `json:"video_thumbnail_image_link"`
	Cast           []CastMember `json:"cast"`
	Tags           []Link       `json:"tags"`
	Downloads      []Link       `json:"downloads"`
	PhotoLinks     []string     `json:"photo_link_list"`
}

// TagNames returns the tag labels in page order.
func (d *ItemDetails) TagNames() []string {
	names := make([]string, 0, len(d.Tags))
	for _, t := range d.Tags {
		names = append(names, t.Item)
	}
	return names
}

// CastNames returns the cast names in page order.
func (d *ItemDetails) CastNames() []string {
	names := make([]string, 0, len(d.Cast))
	for _, c := range d.Cast {
		names = append(names, c.Name)
	}
	return names
}
