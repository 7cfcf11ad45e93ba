package models

// ProfilePatch is a partial profile update. A nil field is absent and leaves
// the stored value untouched; a present field overwrites it. Social links
// merge one link at a time.
type ProfilePatch struct {
	Company        *string
	Website        *string
	Location       *string
	Status         *string
	Bio            *string
	GitHubUsername *string
	Skills         []string
	Social         SocialPatch
}

type SocialPatch struct {
	YouTube   *string
	Twitter   *string
	Facebook  *string
	LinkedIn  *string
	Instagram *string
}

// Scalars returns the present scalar fields keyed by their stored name.
func (p ProfilePatch) Scalars() map[string]string {
	fields := make(map[string]string)
	set(fields, "company", p.Company)
	set(fields, "website", p.Website)
	set(fields, "location", p.Location)
	set(fields, "status", p.Status)
	set(fields, "bio", p.Bio)
	set(fields, "githubusername", p.GitHubUsername)
	return fields
}

// Links returns the present social links keyed by their stored name.
func (s SocialPatch) Links() map[string]string {
	links := make(map[string]string)
	set(links, "youtube", s.YouTube)
	set(links, "twitter", s.Twitter)
	set(links, "facebook", s.Facebook)
	set(links, "linkedin", s.LinkedIn)
	set(links, "instagram", s.Instagram)
	return links
}

// Apply merges the patch into profile following the same rule the stores use.
func (p ProfilePatch) Apply(profile *Profile) {
	for field, value := range p.Scalars() {
		switch field {
		case "company":
			profile.Company = value
		case "website":
			profile.Website = value
		case "location":
			profile.Location = value
		case "status":
			profile.Status = value
		case "bio":
			profile.Bio = value
		case "githubusername":
			profile.GitHubUsername = value
		}
	}
	if p.Skills != nil {
		profile.Skills = append([]string(nil), p.Skills...)
	}
	for name, link := range p.Social.Links() {
		switch name {
		case "youtube":
			profile.Social.YouTube = link
		case "twitter":
			profile.Social.Twitter = link
		case "facebook":
			profile.Social.Facebook = link
		case "linkedin":
			profile.Social.LinkedIn = link
		case "instagram":
			profile.Social.Instagram = link
		}
	}
}

func set(into map[string]string, key string, value *string) {
	if value != nil {
		into[key] = *value
	}
}
