package models

// These structs define the JSON payloads for the tag manager HTTP functions.

// ListTagsResponse is the output of HandleListTags.
type ListTagsResponse struct {
	Status string `json:"status"`
	Tags   []Tag  `json:"tags"`
}

// SaveTagRequest is the input for HandleSaveTag.
type SaveTagRequest struct {
	ImageID  string `json:"imageId"`
	Filename string `json:"filename"`
	Filepath string `json:"filepath"`
	Deadline string `json:"deadline"`
}

// Tag converts the request into a Tag value.
func (r SaveTagRequest) Tag() Tag {
	return Tag{ImageID: r.ImageID, Filename: r.Filename, Filepath: r.Filepath, Deadline: r.Deadline}
}

// SaveTagResponse is the output of HandleSaveTag.
type SaveTagResponse struct {
	Status string `json:"status"`
	Tag    Tag    `json:"tag"`
}

// DeleteTagRequest is the input for HandleDeleteTag.
type DeleteTagRequest struct {
	ImageID string `json:"imageId"`
}

// DeleteTagResponse is the output of HandleDeleteTag.
type DeleteTagResponse struct {
	Status       string `json:"status"`
	ImageRemoved bool   `json:"imageRemoved"`
}

// SuggestTagRequest is the input for HandleSuggestTag.
type SuggestTagRequest struct {
	ImageID string `json:"imageId"`
}

// SuggestTagResponse is the output of HandleSuggestTag.
type SuggestTagResponse struct {
	Status     string `json:"status"`
	Suggestion Tag    `json:"suggestion"`
}
