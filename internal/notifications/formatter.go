package notifications

import "fmt"

// Push titles per notification type.
const (
	TitleFollow          = "New Follower"
	TitleRepost          = "New Repost"
	TitleFavorite        = "New Favorite"
	TitleCreate          = "New Artist Update"
	TitleRemixCreate     = "New Remix Of Your Track"
	TitleRemixCosign     = "New Track Co-Sign!"
	TitleMilestone       = "Congratulations!"
	TitleTrendingTrack   = "Your Track Is Trending!"
	TitleChallengeReward = "You've Earned $WAVE!"
	TitleSupporterRankUp = "Top Supporter"
	TitleDethroned       = "You've Been Dethroned!"
)

func formatFollow(follower UserMeta) string {
	return fmt.Sprintf("%s followed you", follower.Name)
}

func formatRepost(reposter UserMeta, kind EntityKind, entityName string) string {
	return fmt.Sprintf("%s reposted your %s %s", reposter.Name, kind, entityName)
}

func formatFavorite(favoriter UserMeta, kind EntityKind, entityName string) string {
	return fmt.Sprintf("%s favorited your %s %s", favoriter.Name, kind, entityName)
}

func formatCreateTrack(artist UserMeta, trackTitle string) string {
	return fmt.Sprintf("%s released a new track %s", artist.Name, trackTitle)
}

func formatCreateCollection(artist UserMeta, kind EntityKind, collectionName string) string {
	return fmt.Sprintf("%s released a new %s %s", artist.Name, kind, collectionName)
}

func formatRemixCreate(remixer UserMeta, remixTitle, parentTitle string) string {
	return fmt.Sprintf("New remix of your track %s: %s uploaded %s", parentTitle, remixer.Name, remixTitle)
}

func formatRemixCosign(parentArtist UserMeta, remixTitle string) string {
	return fmt.Sprintf("%s Co-Signed your Remix of %s", parentArtist.Name, remixTitle)
}

func formatTrending(trackTitle string, rank int64) string {
	return fmt.Sprintf("Your Track %s is %d%s on Trending Right Now!", trackTitle, rank, ordinalSuffix(rank))
}

func formatChallengeReward(amount int64) string {
	return fmt.Sprintf("You've earned %d $WAVE for completing this challenge!", amount)
}

func formatSupporterRankUp(supporter UserMeta, rank int64) string {
	return fmt.Sprintf("%s became your #%d Top Supporter!", supporter.Name, rank)
}

func formatSupportingRankUp(supported UserMeta, rank int64) string {
	return fmt.Sprintf("You're now %s's #%d Top Supporter!", supported.Name, rank)
}

func formatDethroned(usurper, supported UserMeta) string {
	return fmt.Sprintf("%s dethroned you as #1 Top Supporter of %s!", usurper.Name, supported.Name)
}

// formatMilestone phrases the threshold crossing. Follower milestones have no
// entity; the rest name the track or collection.
func formatMilestone(kind MilestoneKind, entityName string, threshold int64) string {
	switch kind {
	case MilestoneFollow:
		return fmt.Sprintf("You have reached over %d Followers", threshold)
	case MilestoneRepost:
		return fmt.Sprintf("Your %s has reached over %d reposts", entityName, threshold)
	case MilestoneFavorite:
		return fmt.Sprintf("Your %s has reached over %d favorites", entityName, threshold)
	case MilestoneListen:
		return fmt.Sprintf("Your %s has reached over %d listens", entityName, threshold)
	}
	return ""
}

func ordinalSuffix(n int64) string {
	if n%100 >= 11 && n%100 <= 13 {
		return "th"
	}
	switch n % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	}
	return "th"
}
