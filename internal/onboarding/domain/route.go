package domain

import (
	profiledomain "github.com/smallbiznis/bizops/internal/profile/domain"
)

// Route maps profile state to the post-login destination. It is a pure
// function: a nil or organization-less profile lands on the join screen,
// members who have not dismissed the welcome land there, everyone else
// goes to the dashboard.
func Route(p *profiledomain.Profile) Destination {
	if p == nil || p.OrgID == nil {
		return DestinationJoinOrganization
	}
	if !p.HasSeenWelcome {
		return DestinationEmployeeWelcome
	}
	return DestinationDashboard
}
